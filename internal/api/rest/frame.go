package rest

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

// FrameConfig holds the values of the frame embed page
type FrameConfig struct {
	Title       string
	Description string
	ImageURL    string
	PostURL     string
	ButtonLabel string
}

var frameTemplate = template.Must(template.New("frame").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta property="og:title" content="{{.Title}}" />
    <meta property="og:description" content="{{.Description}}" />
    <meta property="og:image" content="{{.ImageURL}}" />
    <meta property="fc:frame" content="vNext" />
    <meta property="fc:frame:image" content="{{.ImageURL}}" />
    <meta property="fc:frame:button:1" content="{{.ButtonLabel}}" />
    <meta property="fc:frame:post_url" content="{{.PostURL}}" />
  </head>
  <body></body>
</html>
`))

// Frame renders the frame page, never cached by clients or proxies
func (h *handler) Frame(c *gin.Context) {
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Header("Surrogate-Control", "no-store")
	c.Render(http.StatusOK, render.HTML{Template: frameTemplate, Data: h.config.Frame})
}
