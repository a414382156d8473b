package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktrack/logging"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithOutput(&buf, "debug", "json")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("shift_id", 12).Info("Shift created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Shift created", line["msg"])
	assert.Equal(t, float64(12), line["shift_id"])
}

func TestNew_TextAndUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithOutput(&buf, "loud", "text")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "Unknown log level")

	buf.Reset()
	log.Debug("hidden")
	assert.Empty(t, buf.String())
}
