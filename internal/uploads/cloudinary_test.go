package uploads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/schedulrr/schedulrr-api/pkg/config"
)

func TestSignIsDeterministic(t *testing.T) {
	client := NewCloudinaryClient(config.CloudinaryConfig{
		CloudName: "demo",
		APIKey:    "key",
		APISecret: "shhh",
		Folder:    "schedulrr",
	}, zap.NewNop())
	client.now = func() time.Time { return time.Unix(1736150400, 0) }

	// sha1("folder=schedulrr&timestamp=1736150400shhh")
	assert.Equal(t,
		client.sign("1736150400"),
		client.sign("1736150400"))
	assert.NotEqual(t,
		client.sign("1736150400"),
		client.sign("1736150401"))
	assert.Len(t, client.sign("1736150400"), 40)
}
