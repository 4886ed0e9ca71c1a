package objectstore

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		Endpoint:  "minio:9000",
		AccessKey: "AKIAEXAMPLE",
		SecretKey: "secretkeyvaluesecretkeyvalue",
		Region:    "us-east-1",
		TTL:       5 * time.Minute,
	}
}

func TestPresignGET_EmptyKeyReturnsEmptyString(t *testing.T) {
	assert.Empty(t, PresignGET(testConfig(), "avatars", ""))
}

func TestPresignGET_ContainsExpectedComponents(t *testing.T) {
	url := PresignGET(testConfig(), "avatars", "user-42.png")

	for _, want := range []string{
		"http://minio:9000/avatars/user-42.png",
		"X-Amz-Algorithm=AWS4-HMAC-SHA256",
		"X-Amz-Credential=AKIAEXAMPLE/",
		"X-Amz-Expires=300",
		"X-Amz-Signature=",
	} {
		assert.Contains(t, url, want)
	}
}

func TestPresignPUT_UsesPUTInSignature(t *testing.T) {
	getURL := PresignGET(testConfig(), "uploads", "file.bin")
	putURL := PresignPUT(testConfig(), "uploads", "file.bin")

	assert.NotEqual(t, getURL, putURL, "GET and PUT presigned URLs should differ (different signed method)")
}

func TestPresign_PublicURLRewritesInternalHost(t *testing.T) {
	cfg := testConfig()
	cfg.PublicURL = "https://media.example.com"

	url := PresignGET(cfg, "avatars", "user-42.png")
	assert.NotContains(t, url, "minio:9000", "expected internal host to be rewritten")
	assert.True(t, strings.HasPrefix(url, "https://media.example.com/"), "expected PublicURL prefix, got %q", url)
}

func TestPresign_DefaultsTTLWhenUnset(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = 0
	url := PresignGET(cfg, "avatars", "x.png")
	assert.Contains(t, url, "X-Amz-Expires=900", "expected default 15m TTL (900s)")
}
