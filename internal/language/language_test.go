package language_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/gqlforge/internal/language"
)

func TestParseQuery(t *testing.T) {
	doc, err := language.ParseQuery(`query Posts($id: Int) { posts(id: $id) { id } }`)
	require.NoError(t, err)
	require.Len(t, doc.Operations, 1)
	op := doc.Operations[0]
	require.Equal(t, language.Query, op.Operation)
	require.Equal(t, "Posts", op.Name)
	require.Len(t, op.VariableDefinitions, 1)
}

func TestParseQuerySyntaxError(t *testing.T) {
	_, err := language.ParseQuery(`{ posts { id }`)
	var gerr *gqlerror.Error
	require.True(t, errors.As(err, &gerr))
	require.NotEmpty(t, gerr.Locations)
}
