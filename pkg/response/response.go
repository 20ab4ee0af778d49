package response

import (
	"net/http"

	"cashmine/pkg/apperr"

	"github.com/gin-gonic/gin"
)

const CodeSuccess = "OK"

type Response struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error writes err with the HTTP status of its kind. Internal causes are
// never echoed to the caller.
func Error(c *gin.Context, err error) {
	e := apperr.From(err)
	msg := e.Message
	if e.Kind == apperr.KindInternal {
		msg = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusOf(e), Response{
		Code:    string(e.Code),
		Message: msg,
		Details: e.Details,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, apperr.Validation(apperr.CodeInvalidArgument, message))
}

func StatusOf(e *apperr.Error) int {
	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindStateConflict:
		if e.Code == apperr.CodeBusy {
			return http.StatusServiceUnavailable
		}
		return http.StatusConflict
	case apperr.KindAuthorization:
		if e.Code == apperr.CodeForbidden {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInsufficientFunds:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
