package catalog_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libranexus/platform/internal/catalog"
	"github.com/libranexus/platform/pkg/aggregate"
	"github.com/libranexus/platform/pkg/eventmodel"
)

func applyAll(t *testing.T, book *catalog.Book, payloads []eventmodel.EventPayload, startVersion int64) {
	t.Helper()
	events := make([]eventmodel.DomainEvent, len(payloads))
	for i, p := range payloads {
		e, err := eventmodel.New(book.AggregateID(), catalog.AggregateType, p, eventmodel.Metadata{})
		require.NoError(t, err)
		e.Version = startVersion + int64(i)
		events[i] = e
	}
	require.NoError(t, aggregate.Rehydrate(book, events))
}

func TestCreateBookRejectsMissingRequiredFields(t *testing.T) {
	_, err := catalog.Create("", "Title", "Author", "Pub", 2000, 9.99)
	assert.Error(t, err)
}

func TestCreateThenRehydrateProducesExpectedState(t *testing.T) {
	payloads, err := catalog.Create("0515125628", "  T  ", " A ", " P ", 1999, 9.99)
	require.NoError(t, err)
	require.Len(t, payloads, 1)

	book := catalog.NewBook(uuid.NewString())
	applyAll(t, book, payloads, 1)

	assert.Equal(t, "0515125628", book.ISBN)
	assert.Equal(t, "T", book.Title)
	assert.Equal(t, "A", book.Author)
	assert.Equal(t, int64(1), book.Version())
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	book := seedBook(t)
	_, err := book.Update(catalog.BookPatch{})
	assert.ErrorIs(t, err, catalog.ErrEmptyPatch)
}

func TestUpdateIsNoOpWhenNothingChanges(t *testing.T) {
	book := seedBook(t)
	same := book.Title
	events, err := book.Update(catalog.BookPatch{Title: &same})
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestUpdateEmitsOnlyChangedFields(t *testing.T) {
	book := seedBook(t)
	newTitle := "New Title"
	events, err := book.Update(catalog.BookPatch{Title: &newTitle})
	require.NoError(t, err)
	require.Len(t, events, 1)

	updated := events[0].(catalog.BookUpdated)
	assert.Equal(t, "New Title", *updated.Title)
	assert.Nil(t, updated.Author)
}

func TestDeleteIsIdempotent(t *testing.T) {
	book := seedBook(t)
	events, err := book.Delete()
	require.NoError(t, err)
	applyAll(t, book, events, book.Version()+1)
	assert.True(t, book.Deleted())

	events, err = book.Delete()
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestUpdateAfterDeleteFails(t *testing.T) {
	book := seedBook(t)
	events, err := book.Delete()
	require.NoError(t, err)
	applyAll(t, book, events, book.Version()+1)

	newTitle := "Should not apply"
	_, err = book.Update(catalog.BookPatch{Title: &newTitle})
	assert.ErrorIs(t, err, catalog.ErrAlreadyDeleted)
}

func seedBook(t *testing.T) *catalog.Book {
	t.Helper()
	payloads, err := catalog.Create("0515125628", "Title", "Author", "Publisher", 1999, 9.99)
	require.NoError(t, err)
	book := catalog.NewBook(uuid.NewString())
	applyAll(t, book, payloads, 1)
	return book
}
