package repositories

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"campus-chat-service/internal/models"
)

func TestNewestFirstPageOptions(t *testing.T) {
	opts := newestFirstPage(3, 20)

	require.NotNil(t, opts.Skip)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(40), *opts.Skip)
	assert.Equal(t, int64(20), *opts.Limit)
	assert.Equal(t,
		bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
		opts.Sort)
}

func TestReverseMessages(t *testing.T) {
	reverseMessages(nil)

	a := models.Message{ID: primitive.NewObjectID(), Content: "a"}
	b := models.Message{ID: primitive.NewObjectID(), Content: "b"}
	c := models.Message{ID: primitive.NewObjectID(), Content: "c"}

	msgs := []models.Message{c, b, a}
	reverseMessages(msgs)
	assert.Equal(t, []models.Message{a, b, c}, msgs)
}

// applyNewestFirstPage evaluates the sort/skip/limit that newestFirstPage
// asks the store for against an in-memory log, so the reversal can be
// checked end to end without a running database.
func applyNewestFirstPage(msgs []models.Message, page, limit int) []models.Message {
	sorted := append([]models.Message(nil), msgs...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID.Hex() > sorted[j].ID.Hex()
	})

	opts := newestFirstPage(page, limit)
	skip := int(*opts.Skip)
	if skip >= len(sorted) {
		return nil
	}
	end := skip + int(*opts.Limit)
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[skip:end]
}

func messageBefore(a, b models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.Hex() < b.ID.Hex()
}

func TestPageReversalYieldsNonDecreasingCreatedAt(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Second)
	var corpus []models.Message
	for i := 0; i < 23; i++ {
		corpus = append(corpus, models.Message{
			ID: primitive.NewObjectID(),
			// Three messages share each timestamp, exercising the id
			// tiebreak.
			CreatedAt: base.Add(time.Duration(i/3) * time.Second),
		})
	}

	const limit = 5
	var previousPage []models.Message
	var pages int
	for page := 1; ; page++ {
		msgs := applyNewestFirstPage(corpus, page, limit)
		if len(msgs) == 0 {
			break
		}
		pages++
		reverseMessages(msgs)

		for k := 1; k < len(msgs); k++ {
			prev, cur := msgs[k-1], msgs[k]
			assert.False(t, cur.CreatedAt.Before(prev.CreatedAt),
				"page %d: createdAt decreased at index %d", page, k)
			if cur.CreatedAt.Equal(prev.CreatedAt) {
				assert.Greater(t, cur.ID.Hex(), prev.ID.Hex(),
					"page %d: id tiebreak violated at index %d", page, k)
			}
		}

		// Higher page numbers walk further into the past: everything on
		// this page precedes everything on the previous page.
		if previousPage != nil {
			assert.True(t, messageBefore(msgs[len(msgs)-1], previousPage[0]),
				"page %d overlaps page %d", page, page-1)
		}
		previousPage = msgs
	}

	assert.Equal(t, 5, pages)
}
