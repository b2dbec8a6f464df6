package handler

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"civic-reporting-system/pkg/geo"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by the request types.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("latlng", func(fl validator.FieldLevel) bool {
			_, err := geo.Parse(fl.Field().String())
			return err == nil || errors.Is(err, geo.ErrNoCoordinates)
		})
	})
}
