package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/models"
)

func parseID(c *gin.Context, log *zap.Logger, op string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		log.Warn("[task]["+op+"][err] invalid id", zap.String("id_param", c.Param("id")))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// parseFilter reads the list query. A parameter that is present but empty is
// kept as a constraint; only absent parameters mean "any".
func parseFilter(c *gin.Context) (models.TaskFilter, error) {
	var filter models.TaskFilter
	if v, ok := c.GetQuery("status"); ok {
		st := models.TaskStatus(v)
		if !st.Valid() {
			return filter, fmt.Errorf("invalid status %q", v)
		}
		filter.Status = &st
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"from_date", &filter.FromDate},
		{"to_date", &filter.ToDate},
	} {
		v, ok := c.GetQuery(p.name)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid %s (RFC3339)", p.name)
		}
		*p.dst = &t
	}
	if v, ok := c.GetQuery("title_contains"); ok {
		filter.TitleContains = &v
	}
	return filter, nil
}
