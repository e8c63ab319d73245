package msgpack

import (
	"mime"
	"net/http"

	"github.com/snapflowio/dispatch"
	"github.com/vmihailenco/msgpack/v5"
)

const ContentType = "application/msgpack"

// Middleware installs MessagePack as the body codec for ctx.Unmarshal and
// ctx.Respond. Both application/msgpack and application/x-msgpack bodies are
// accepted; other declared media types get a 415.
//
//	server.Use(msgpack.Middleware())
//
//	server.Post("/users", func(ctx *dispatch.Context) dispatch.Result {
//	    var req CreateUserRequest
//	    if err := ctx.Unmarshal(&req); err != nil {
//	        return ctx.Fail(err)
//	    }
//	    _ = ctx.Respond(http.StatusCreated, user)
//	    return dispatch.Final
//	})
func Middleware() dispatch.HandlerFunc {
	return func(ctx *dispatch.Context) dispatch.Result {
		if contentType := ctx.Headers().Get("Content-Type"); contentType != "" {
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || (mediaType != "application/msgpack" && mediaType != "application/x-msgpack") {
				_ = ctx.Text(http.StatusUnsupportedMediaType, "Unsupported Content-Type: "+contentType)
				return dispatch.Final
			}
		}

		ctx.SetBodyUnmarshaler(func(body []byte, into any) error {
			return msgpack.Unmarshal(body, into)
		})
		ctx.SetResponseMarshaller(ContentType, func(v any) ([]byte, error) {
			return msgpack.Marshal(envelope(v))
		})
		return dispatch.Continue
	}
}
