package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/homewatch/internal/models"
)

func TestEventFilterWhereEmpty(t *testing.T) {
	where, args := EventFilter{}.where()
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestEventFilterWhere(t *testing.T) {
	day := time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)
	where, args := EventFilter{
		Status:   models.StatusKnown,
		Name:     "ali",
		Date:     &day,
		CameraID: "porch",
	}.where()

	assert.Equal(t,
		"WHERE status = $1 AND COALESCE(NULLIF(identity, ''), 'Unknown') ILIKE $2 AND timestamp >= $3 AND timestamp < $4 AND camera_id = $5",
		where)
	assert.Equal(t, []any{
		"known",
		"%ali%",
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		"porch",
	}, args)
}

func TestLikePatternEscapes(t *testing.T) {
	assert.Equal(t, "%alice%", likePattern("alice"))
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
}
