package json

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/snapflowio/dispatch"
)

const ContentType = "application/json; charset=utf-8"

// Middleware installs JSON as the body codec for ctx.Unmarshal and
// ctx.Respond. Requests that declare a body of another media type get a 415.
func Middleware() dispatch.HandlerFunc {
	return func(ctx *dispatch.Context) dispatch.Result {
		if contentType := ctx.Headers().Get("Content-Type"); contentType != "" {
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || mediaType != "application/json" {
				_ = ctx.Text(http.StatusUnsupportedMediaType, "Unsupported Content-Type: "+contentType)
				return dispatch.Final
			}
		}

		ctx.SetBodyUnmarshaler(func(body []byte, into any) error {
			return json.Unmarshal(body, into)
		})
		ctx.SetResponseMarshaller(ContentType, func(v any) ([]byte, error) {
			return json.Marshal(envelope(v))
		})
		return dispatch.Continue
	}
}
