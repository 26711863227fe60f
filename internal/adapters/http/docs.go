package http

import (
	"os"

	"github.com/gofiber/fiber/v2"
)

// docsPage lists the planner surfaces above the generated reference. Operations
// are grouped by the tags in api/openapi.yaml.
const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>City Planner API reference</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>
    body{margin:0;font-family:system-ui,sans-serif;background:#fff}
    header{padding:1rem 2rem;border-bottom:1px solid #ddd}
    header h1{margin:0 0 .5rem;font-size:1.4rem}
    header ul{margin:0;padding-left:1.2rem;line-height:1.6}
    .topbar{display:none}
  </style>
</head>
<body>
  <header>
    <h1>City Planner</h1>
    <p>Drop user markers on the city map, send them to the recommendation service and get activity markers back.</p>
    <ul>
      <li><a href="/">/</a> map page with the base, user and activity layers</li>
      <li><code>POST /v1/markers</code> and <code>DELETE /v1/markers/{index}</code> edit the user layer</li>
      <li><code>POST /v1/recommendations</code> runs one request at a time; a second one gets 409</li>
      <li><a href="/v1/layers.geojson">/v1/layers.geojson</a> all layers as a FeatureCollection</li>
      <li><code>/ws</code> pushes the map view after every change; send <code>{"action":"refresh"}</code> to resend it</li>
      <li><code>POST /graphql</code> markers, status and findActivities</li>
    </ul>
  </header>
  <div id="reference"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#reference',
      docExpansion: 'list',
      tagsSorter: 'alpha',
      tryItOutEnabled: true,
      presets: [SwaggerUIBundle.presets.apis],
    });
  </script>
</body>
</html>`

// OpenAPIPath is read on every request, relative to the working directory.
var OpenAPIPath = "api/openapi.yaml"

// SetupDocs serves the planner API reference at /docs and its OpenAPI document
// at /docs/openapi.yaml.
func SetupDocs(app *fiber.App) {
	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(docsPage)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		data, err := os.ReadFile(OpenAPIPath)
		if err != nil {
			return errNotFound(c, "API description not available")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(data)
	})
}
