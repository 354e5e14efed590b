package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	goerrors "github.com/quotelab/feedgate/errors"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError inspects err: an *AppError anywhere in the chain drives
// the status code and structured body; anything else becomes a generic 500.
func RespondWithError(c *gin.Context, err error) {
	appErr := goerrors.Wrap(err)
	c.JSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondNoContent sends a 204 with no body.
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
