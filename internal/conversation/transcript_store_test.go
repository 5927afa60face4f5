package conversation

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTranscriptMock(t *testing.T) (*SQLTranscriptStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLTranscriptStore(db), mock
}

func TestEnsureConversationCreatesRow(t *testing.T) {
	store, mock := newTranscriptMock(t)

	mock.ExpectQuery(`SELECT id FROM conversations WHERE conversation_id = \$1`).
		WithArgs("conv-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO conversations`).
		WithArgs(sqlmock.AnyArg(), "conv-1", "webchat", 0, 0, 0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.EnsureConversation(context.Background(), "conv-1", "webchat")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureConversationExistingBumpsUpdatedAt(t *testing.T) {
	store, mock := newTranscriptMock(t)
	existing := uuid.New()

	mock.ExpectQuery(`SELECT id FROM conversations WHERE conversation_id = \$1`).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(existing.String()))
	mock.ExpectExec(`UPDATE conversations SET updated_at = \$1 WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), existing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.EnsureConversation(context.Background(), "conv-1", "api")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureConversationDefaultsChannel(t *testing.T) {
	store, mock := newTranscriptMock(t)

	mock.ExpectQuery(`SELECT id FROM conversations`).
		WithArgs("conv-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO conversations`).
		WithArgs(sqlmock.AnyArg(), "conv-1", string(ChannelAPI), 0, 0, 0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.EnsureConversation(context.Background(), "conv-1", ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureConversationRequiresID(t *testing.T) {
	store, _ := newTranscriptMock(t)
	err := store.EnsureConversation(context.Background(), "  ", "api")
	assert.Error(t, err)
}

func TestAppendMessageInsertsAndCountsUserMessage(t *testing.T) {
	store, mock := newTranscriptMock(t)

	mock.ExpectExec(`INSERT INTO conversation_messages`).
		WithArgs(sqlmock.AnyArg(), "conv-1", ChatRoleUser, "hello", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`user_message_count = user_message_count \+ 1`).
		WithArgs(sqlmock.AnyArg(), "conv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.AppendMessage(context.Background(), "conv-1", ChatRoleUser, "hello")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendMessageConflictSkipsCounters(t *testing.T) {
	store, mock := newTranscriptMock(t)

	mock.ExpectExec(`INSERT INTO conversation_messages`).
		WithArgs(sqlmock.AnyArg(), "conv-1", ChatRoleAssistant, "hi there", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.AppendMessage(context.Background(), "conv-1", ChatRoleAssistant, "hi there")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMessagesReturnsTranscript(t *testing.T) {
	store, mock := newTranscriptMock(t)

	mock.ExpectQuery(`SELECT role, content`).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"role", "content"}).
			AddRow(ChatRoleUser, "hello").
			AddRow(ChatRoleAssistant, "hi, how can I help?"))

	messages, err := store.GetMessages(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, ChatRoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, ChatRoleAssistant, messages[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndConversationStampsEndedAt(t *testing.T) {
	store, mock := newTranscriptMock(t)

	mock.ExpectExec(`ended_at = \$1`).
		WithArgs(sqlmock.AnyArg(), "conv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.EndConversation(context.Background(), "conv-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilTranscriptStoreIsNoop(t *testing.T) {
	var store *SQLTranscriptStore
	ctx := context.Background()

	assert.NoError(t, store.EnsureConversation(ctx, "conv-1", "api"))
	assert.NoError(t, store.AppendMessage(ctx, "conv-1", ChatRoleUser, "hello"))
	messages, err := store.GetMessages(ctx, "conv-1")
	assert.NoError(t, err)
	assert.Nil(t, messages)
	assert.NoError(t, store.EndConversation(ctx, "conv-1"))
}
