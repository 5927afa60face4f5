package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("Jo"))
	assert.True(t, ValidName("  Jane Doe  "))
	assert.False(t, ValidName("J"))
	assert.False(t, ValidName("   "))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("jane@example.com"))
	assert.True(t, ValidEmail("jane.doe+test@sub.example.co"))
	assert.False(t, ValidEmail("jane@bad"))
	assert.False(t, ValidEmail("not an email"))
	assert.False(t, ValidEmail(""))
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("5551234567"))
	assert.True(t, ValidPhone("(555) 123-4567"))
	assert.True(t, ValidPhone("+1 555 123 4567"))
	assert.False(t, ValidPhone("123"))
	assert.False(t, ValidPhone("call me maybe"))
	assert.False(t, ValidPhone("555-123-456x"))
}

func TestExtractFromMessageFullContact(t *testing.T) {
	e := NewContactExtractor(nil)

	info := e.ExtractFromMessage("Jane Doe, jane@example.com, (555) 123-4567")
	assert.Equal(t, "Jane Doe", info.Name)
	assert.Equal(t, "jane@example.com", info.Email)
	assert.Equal(t, "(555) 123-4567", info.Phone)
}

func TestExtractFromMessageEmailOnly(t *testing.T) {
	e := NewContactExtractor(nil)

	info := e.ExtractFromMessage("my email is jane@example.com")
	assert.Equal(t, "jane@example.com", info.Email)
	assert.Empty(t, info.Phone)
	// The remaining words are a sentence, but the regex pass cannot tell,
	// so they become the name guess and validation sorts it out later.
	assert.Equal(t, "my email is", info.Name)
}

func TestExtractFromMessageQuestionIsNotAName(t *testing.T) {
	e := NewContactExtractor(nil)

	info := e.ExtractFromMessage("what info do you need?")
	assert.Empty(t, info.Name)
	assert.Empty(t, info.Email)
	assert.Empty(t, info.Phone)
}

func TestExtractWithLLMParsesFencedJSON(t *testing.T) {
	llm := newFakeLLM()
	llm.raw = "```json\n{\"name\": \"Jane Doe\", \"email\": \"jane@example.com\", \"phone\": \"555-123-4567\"}\n```"
	e := NewContactExtractor(llm)

	info, err := e.ExtractWithLLM(context.Background(), []string{"Jane Doe", "jane@example.com 555-123-4567"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", info.Name)
	assert.Equal(t, "jane@example.com", info.Email)
	assert.Equal(t, "555-123-4567", info.Phone)
}

func TestExtractWithLLMNoMessages(t *testing.T) {
	e := NewContactExtractor(newFakeLLM())

	info, err := e.ExtractWithLLM(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ContactInfo{}, info)
}

func TestMergeContactNeverOverwrites(t *testing.T) {
	state := NewState()
	state.UserName = "Jane Doe"

	MergeContact(state, ContactInfo{Name: "Someone Else", Email: "jane@example.com", Phone: "555-123-4567"})
	assert.Equal(t, "Jane Doe", state.UserName)
	assert.Equal(t, "jane@example.com", state.UserEmail)
	assert.Equal(t, "555-123-4567", state.UserPhone)
}

func TestMergeContactSkipsInvalidName(t *testing.T) {
	state := NewState()

	MergeContact(state, ContactInfo{Name: "J"})
	assert.Empty(t, state.UserName)
}
