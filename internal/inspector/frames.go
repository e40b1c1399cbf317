package inspector

import (
	"bytes"
	"image/png"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/viewbridge/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/image/bmp"
)

// Frame metadata headers.
const (
	HeaderFrameWidth  = "X-Frame-Width"
	HeaderFrameHeight = "X-Frame-Height"
	HeaderFrameSeq    = "X-Frame-Seq"
)

// Frame serves the latest uploaded frame of a view. ?format=png (default),
// bmp, or raw: gzip-compressed RGBA rows with the size in headers.
func (h *Handlers) Frame(c *gin.Context) {
	name := c.Param("name")
	frame, ok := h.manager.Frame(name)
	if !ok {
		fail(c, app.ErrNotFound)
		return
	}
	if frame == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.Header(HeaderFrameWidth, strconv.Itoa(frame.Width))
	c.Header(HeaderFrameHeight, strconv.Itoa(frame.Height))
	c.Header(HeaderFrameSeq, strconv.FormatUint(frame.Seq, 10))

	var buf bytes.Buffer
	switch format := c.DefaultQuery("format", "png"); format {
	case "png":
		if err := png.Encode(&buf, frame.Image()); err != nil {
			fail(c, err)
			return
		}
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	case "bmp":
		if err := bmp.Encode(&buf, frame.Image()); err != nil {
			fail(c, err)
			return
		}
		c.Data(http.StatusOK, "image/bmp", buf.Bytes())
	case "raw":
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
		if err != nil {
			fail(c, err)
			return
		}
		if _, err := zw.Write(frame.Pix); err != nil {
			fail(c, err)
			return
		}
		if err := zw.Close(); err != nil {
			fail(c, err)
			return
		}
		c.Header("Content-Encoding", "gzip")
		c.Data(http.StatusOK, "application/octet-stream", buf.Bytes())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be png, bmp or raw"})
	}
}
