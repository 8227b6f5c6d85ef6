package natsfeed

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/models"
)

func testFeed() *Feed {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &Feed{subjectPrefix: "changes", logger: logger, subs: make(map[string]*subscription)}
}

func wantedTypes(types ...models.EventType) map[models.EventType]bool {
	m := make(map[models.EventType]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

func TestDecodeInsert(t *testing.T) {
	f := testFeed()
	batch, ok := f.decode("requests", wantedTypes(models.EventInsert, models.EventUpdate), []byte(`{
		"type": "INSERT",
		"table": "requests",
		"rows": [{"id": "r1", "status": "new"}]
	}`))
	require.True(t, ok)
	require.Len(t, batch, 1)
	assert.Equal(t, models.EventInsert, batch[0].Type)
	assert.Equal(t, "requests", batch[0].Table)
	assert.Equal(t, "r1", batch[0].NewRow["id"])
	assert.Nil(t, batch[0].OldRow)
}

func TestDecodeUpdatePairsOldRows(t *testing.T) {
	f := testFeed()
	batch, ok := f.decode("requests", wantedTypes(models.EventUpdate), []byte(`{
		"type": "UPDATE",
		"table": "requests",
		"rows": [{"id": "r1", "status": "on_site"}, {"id": "r2", "status": "assigned"}],
		"old_rows": [{"id": "r1", "status": "assigned"}, {"id": "r2", "status": "new"}]
	}`))
	require.True(t, ok)
	require.Len(t, batch, 2)
	assert.Equal(t, "assigned", batch[0].OldRow["status"])
	assert.Equal(t, "on_site", batch[0].NewRow["status"])
	assert.Equal(t, "new", batch[1].OldRow["status"])
}

func TestDecodeFiltersUnwantedTypes(t *testing.T) {
	f := testFeed()
	_, ok := f.decode("requests", wantedTypes(models.EventInsert), []byte(`{
		"type": "UPDATE",
		"table": "requests",
		"rows": [{"id": "r1"}]
	}`))
	assert.False(t, ok)

	// DELETE is outside the enumeration entirely.
	_, ok = f.decode("requests", wantedTypes(models.EventInsert, models.EventUpdate), []byte(`{
		"type": "DELETE",
		"table": "requests",
		"rows": [{"id": "r1"}]
	}`))
	assert.False(t, ok)
}

func TestDecodeMalformed(t *testing.T) {
	f := testFeed()
	_, ok := f.decode("requests", wantedTypes(models.EventInsert), []byte(`{not json`))
	assert.False(t, ok)
}

func TestSubscriptionDeliver(t *testing.T) {
	s := &subscription{out: make(chan models.EventBatch, 1)}

	assert.True(t, s.deliver(models.EventBatch{{Table: "requests"}}))
	// Buffer full.
	assert.False(t, s.deliver(models.EventBatch{{Table: "requests"}}))

	<-s.out
	s.close()
	// Delivery after close is rejected, not a panic.
	assert.False(t, s.deliver(models.EventBatch{{Table: "requests"}}))
	// Closing twice is safe.
	s.close()
}
