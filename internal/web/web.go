package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

//go:embed views
var viewsFS embed.FS

// Layout wraps every page.
const Layout = "layouts/main"

// NewEngine returns the template engine for the embedded views.
func NewEngine() *html.Engine {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}
	return html.NewFileSystem(http.FS(sub), ".html")
}

// Page returns the values every page template expects; handlers add their own
// keys on top.
func Page(title string, authenticated bool) fiber.Map {
	return fiber.Map{
		"Title":         title,
		"Authenticated": authenticated,
		"Error":         "",
		"Success":       "",
		"Notice":        "",
		"Errors":        map[string]string{},
	}
}

// Render renders a page inside the shared layout with the given status.
func Render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	return c.Status(status).Render(name, data, Layout)
}
