package routes

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"

	"github.com/ejfeldman7/lakebase-image-serving/controllers"
	"github.com/ejfeldman7/lakebase-image-serving/middlewares"
	"github.com/ejfeldman7/lakebase-image-serving/view"
)

//go:embed templates/*.html
var templateFS embed.FS

func SetupRouter(gallery *controllers.GalleryController, images *controllers.ImageController) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestLogger())

	tmpl := template.Must(template.New("").Funcs(template.FuncMap{
		"filename": view.Filename,
		"display":  view.DisplayPath,
	}).ParseFS(templateFS, "templates/*.html"))
	r.SetHTMLTemplate(tmpl)

	r.GET("/", gallery.Page)
	r.GET("/health", controllers.Health)

	api := r.Group("/api")
	{
		api.GET("/labels", gallery.Labels)
		api.GET("/label-details", gallery.LabelDetails)
		api.GET("/score-range", gallery.ScoreRange)
		api.GET("/images", gallery.Images)
		api.GET("/image", images.Serve)
		api.GET("/image/thumbnail", images.Thumbnail)
	}

	return r
}
