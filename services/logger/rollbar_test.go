package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/contractgrading/core"
)

func TestRollbarLogger_fields(t *testing.T) {
	std, hook := test.NewNullLogger()
	std.SetLevel(logrus.DebugLevel)
	logger := NewRollbarLogger(std.WithField("component", "test"), &core.Config{Env: "TEST"})
	logger.Enable(false)

	err := errors.New("boom")
	logger.Warn("grade change failed", err, map[string]interface{}{"class_id": "c1"}, core.Person{ID: "u1"})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "grade change failed", entry.Message)
	assert.Equal(t, "test", entry.Data["component"])
	assert.Equal(t, "c1", entry.Data["class_id"])
	assert.Equal(t, "u1", entry.Data["user_id"])
	assert.Equal(t, err, entry.Data[logrus.ErrorKey])

	logger.Debug("ping")
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
	assert.Len(t, hook.AllEntries(), 2)
}
