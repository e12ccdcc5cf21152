package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ejfeldman7/lakebase-image-serving/config"
	"github.com/ejfeldman7/lakebase-image-serving/models"
	"github.com/ejfeldman7/lakebase-image-serving/services"
	"github.com/ejfeldman7/lakebase-image-serving/view"
)

// PredictionQueries is the slice of the query layer the gallery needs.
type PredictionQueries interface {
	Labels(ctx context.Context) ([]string, error)
	LabelDetails(ctx context.Context, label string) ([]string, error)
	ScoreBounds(ctx context.Context) (float64, float64, error)
	Paths(ctx context.Context, f services.Filter) ([]string, error)
	PathsPage(ctx context.Context, f services.Filter, limit, offset int) ([]string, error)
	Count(ctx context.Context, f services.Filter) (int64, error)
	Find(ctx context.Context, path string) (*models.PredictionRecord, error)
}

type GalleryController struct {
	predictions PredictionQueries
}

func NewGalleryController(predictions PredictionQueries) *GalleryController {
	return &GalleryController{predictions: predictions}
}

// Page renders the full gallery: filter controls, match count, and the
// two-panel comparison.
func (g *GalleryController) Page(c *gin.Context) {
	ctx := c.Request.Context()

	boundsMin, boundsMax, err := g.predictions.ScoreBounds(ctx)
	if err != nil {
		c.HTML(http.StatusBadGateway, "gallery.html", view.ErrorPage(err))
		return
	}
	labels, err := g.predictions.Labels(ctx)
	if err != nil {
		c.HTML(http.StatusBadGateway, "gallery.html", view.ErrorPage(err))
		return
	}

	st := view.ParseState(c.Request.URL.Query(), boundsMin, boundsMax)

	details, err := g.predictions.LabelDetails(ctx, st.Label)
	if err != nil {
		c.HTML(http.StatusBadGateway, "gallery.html", view.ErrorPage(err))
		return
	}

	f := services.Filter{
		Label:       st.Label,
		LabelDetail: st.LabelDetail,
		Search:      st.Search,
		MinScore:    &st.MinScore,
		MaxScore:    &st.MaxScore,
	}
	paths, err := g.predictions.Paths(ctx, f)
	if err != nil {
		c.HTML(http.StatusBadGateway, "gallery.html", view.ErrorPage(err))
		return
	}
	total, err := g.predictions.Count(ctx, f)
	if err != nil {
		c.HTML(http.StatusBadGateway, "gallery.html", view.ErrorPage(err))
		return
	}

	page := view.NewPage(st, labels, details, boundsMin, boundsMax, paths, total)
	if page.State.Left != "" {
		page.Left = g.panel(ctx, page.State.Left)
	}
	if page.State.Right != "" {
		page.Right = g.panel(ctx, page.State.Right)
	}

	c.HTML(http.StatusOK, "gallery.html", page)
}

// panel looks up the metadata for one comparison pick. A lookup failure
// degrades to a bare panel rather than failing the whole page.
func (g *GalleryController) panel(ctx context.Context, path string) *view.Panel {
	p := &view.Panel{Path: path}
	rec, err := g.predictions.Find(ctx, path)
	if err != nil || rec == nil {
		return p
	}
	p.Label = rec.Label
	p.LabelDetail = rec.LabelDetail
	p.Score = rec.Score
	p.HasRecord = true
	return p
}

// Labels lists distinct labels for dropdown population.
// GET /api/labels
func (g *GalleryController) Labels(c *gin.Context) {
	labels, err := g.predictions.Labels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"labels": labels})
}

// LabelDetails lists distinct label details, scoped to ?label= when given.
// GET /api/label-details?label=cat
func (g *GalleryController) LabelDetails(c *gin.Context) {
	details, err := g.predictions.LabelDetails(c.Request.Context(), c.Query("label"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"label_details": details})
}

// ScoreRange reports the min and max score in the table.
// GET /api/score-range
func (g *GalleryController) ScoreRange(c *gin.Context) {
	min, max, err := g.predictions.ScoreBounds(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"min": min, "max": max})
}

// Images returns a filtered, paginated page of image paths plus the total
// match count. Absent filter parameters mean no restriction; an empty
// result is a 200 with an empty list.
// GET /api/images?label=&label_detail=&search=&min_score=&max_score=&limit=&offset=
func (g *GalleryController) Images(c *gin.Context) {
	ctx := c.Request.Context()

	f := services.Filter{
		Label:       c.Query("label"),
		LabelDetail: c.Query("label_detail"),
		Search:      c.Query("search"),
	}
	if v, err := strconv.ParseFloat(c.Query("min_score"), 64); err == nil {
		f.MinScore = &v
	}
	if v, err := strconv.ParseFloat(c.Query("max_score"), 64); err == nil {
		f.MaxScore = &v
	}

	limit := config.DefaultItemsPerPage
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}

	paths, err := g.predictions.PathsPage(ctx, f, limit, offset)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	total, err := g.predictions.Count(ctx, f)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if paths == nil {
		paths = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"paths":  paths,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Health is a liveness probe.
// GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
