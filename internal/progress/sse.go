package progress

import (
	"io"
	"strconv"

	"github.com/gin-contrib/sse"
)

// WriteSSE encodes e as a server-sent event named after its kind.
func WriteSSE(w io.Writer, e Event) error {
	return sse.Encode(w, sse.Event{
		Event: string(e.Kind),
		Id:    strconv.Itoa(e.Seq),
		Data:  e,
	})
}
