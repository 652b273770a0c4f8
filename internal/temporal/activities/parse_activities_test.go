package activities

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func TestParseActivities_ParseContent(t *testing.T) {
	t.Run("parses a record array", func(t *testing.T) {
		suite := &testsuite.WorkflowTestSuite{}
		env := suite.NewTestActivityEnvironment()

		act := NewParseActivities(nil)
		env.RegisterActivity(act.ParseContent)

		result, err := env.ExecuteActivity(act.ParseContent, ParseContentInput{
			TaskID:  uuid.New(),
			Content: `[{"name":"西湖","ticketPrice":80},{"name":"灵隐寺"}]`,
		})
		require.NoError(t, err)

		var output ParseContentOutput
		require.NoError(t, result.Get(&output))

		assert.Empty(t, output.ParseError)
		require.Len(t, output.Records, 2)
		assert.Equal(t, "西湖", output.Records[0].StringField("name"))
	})

	t.Run("flattens a city overview payload", func(t *testing.T) {
		suite := &testsuite.WorkflowTestSuite{}
		env := suite.NewTestActivityEnvironment()

		act := NewParseActivities(nil)
		env.RegisterActivity(act.ParseContent)

		result, err := env.ExecuteActivity(act.ParseContent, ParseContentInput{
			TaskID:  uuid.New(),
			Content: `{"city":"Testville","content":{"history":{"content":"H"}}}`,
		})
		require.NoError(t, err)

		var output ParseContentOutput
		require.NoError(t, result.Get(&output))

		assert.Empty(t, output.ParseError)
		require.Len(t, output.Records, 1)
		rec := output.Records[0]
		assert.Equal(t, "Testville", rec["city"])

		history, ok := rec["history"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "H", history["content"])
	})

	t.Run("degrades to diagnostics on malformed content", func(t *testing.T) {
		suite := &testsuite.WorkflowTestSuite{}
		env := suite.NewTestActivityEnvironment()

		act := NewParseActivities(nil)
		env.RegisterActivity(act.ParseContent)

		result, err := env.ExecuteActivity(act.ParseContent, ParseContentInput{
			TaskID:  uuid.New(),
			Content: `{{{ not json at all`,
		})
		require.NoError(t, err, "parse failures are reported through the output, never as activity errors")

		var output ParseContentOutput
		require.NoError(t, result.Get(&output))

		assert.Empty(t, output.Records)
		assert.Contains(t, output.ParseError, "failed to parse workflow content")
	})
}
