package browser

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageEncoding(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "title on",
			msg:  TitleMessage(true),
			want: `{"action":"updateTabTitle","active":true}`,
		},
		{
			name: "title off",
			msg:  TitleMessage(false),
			want: `{"action":"updateTabTitle","active":false}`,
		},
		{
			name: "heartbeat",
			msg:  HeartbeatMessage(1728815400000),
			want: `{"action":"timerHeartbeat","active":false,"timestamp":1728815400000}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestReplyDecoding(t *testing.T) {
	var reply Reply
	require.NoError(t, json.Unmarshal([]byte(`{"active":true,"timestamp":42}`), &reply))
	assert.True(t, reply.Active)
	assert.Equal(t, int64(42), reply.Timestamp)

	reply = Reply{}
	require.NoError(t, json.Unmarshal([]byte(`{"active":false}`), &reply))
	assert.False(t, reply.Active)
}

func TestAgentScriptCarriesConfig(t *testing.T) {
	d := &CDPDriver{cfg: Config{
		AgentEndpoint:  "http://127.0.0.1:7420/v1/message",
		AgentHeartbeat: 25 * time.Second,
		AgentToken:     "launch-token",
	}}

	script, err := d.agentScript("B1C3")
	require.NoError(t, err)

	prefix := "window.__tabwardenConfig = "
	require.True(t, strings.HasPrefix(script, prefix))

	line := strings.SplitN(script, "\n", 2)[0]
	raw := strings.TrimSuffix(strings.TrimPrefix(line, prefix), ";")

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	assert.Equal(t, "B1C3", cfg["tabId"])
	assert.Equal(t, "http://127.0.0.1:7420/v1/message", cfg["endpoint"])
	assert.Equal(t, float64(25000), cfg["heartbeatMs"])
	assert.Equal(t, "launch-token", cfg["token"])

	assert.Contains(t, script, "window.__tabwarden =")
	assert.Contains(t, script, "tabKeepAlive")
	assert.Contains(t, script, "delete window.__tabwardenConfig")
}
