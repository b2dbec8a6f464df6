package response

import (
	"github.com/gin-gonic/gin"

	appErrors "civic-reporting-system/pkg/errors"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

type ErrorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

func Success(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// Error writes err using the status its *appErrors.Error carries. Unknown
// errors become 500 without leaking their text.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	body := &ErrorBody{Code: appErr.Code}
	if appErr.Err != nil && appErr.Status < 500 {
		body.Detail = appErr.Err.Error()
	}
	c.AbortWithStatusJSON(appErr.Status, APIResponse{
		Status:  "error",
		Message: appErr.Message,
		Error:   body,
	})
}
