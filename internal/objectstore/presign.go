// Package objectstore derives pre-signed GET URLs for object storage. Object
// storage itself is an external collaborator (spec.md §1); this package is
// the pure, deterministic function the core calls when serializing message
// and profile rows that reference a stored object.
package objectstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Config holds the connection and credential details needed to derive
// presigned URLs. It is loaded from OBJECT_STORE_* environment variables.
type Config struct {
	Endpoint  string // e.g. "minio:9000" or "http://minio:9000"
	PublicURL string // rewrites the internal host prefix when set
	AccessKey string
	SecretKey string
	Region    string // defaults to "us-east-1" if empty
	Bucket    string // default bucket uploads land in
	TTL       time.Duration
}

const service = "s3"

// PresignGET derives an AWS SigV4 presigned GET URL for bucket/key, a direct
// port of the original MinioPresign.h algorithm: canonical request,
// string-to-sign, and a chained-HMAC derived signing key.
func PresignGET(cfg Config, bucket, key string) string {
	if key == "" {
		return ""
	}
	return presign(cfg, "GET", bucket, key)
}

// PresignPUT derives a presigned upload URL for bucket/key using the same
// algorithm, exercised by the file-upload endpoint to hand the object body
// to storage without the core ever holding storage credentials beyond this
// one deterministic derivation.
func PresignPUT(cfg Config, bucket, key string) string {
	return presign(cfg, "PUT", bucket, key)
}

func presign(cfg Config, method, bucket, key string) string {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	now := time.Now().UTC()
	date := now.Format("20060102")
	datetime := now.Format("20060102T150405Z")

	uri := "/" + bucket + "/" + key
	credScope := fmt.Sprintf("%s/%s/%s/aws4_request", date, region, service)
	credential := cfg.AccessKey + "/" + credScope

	qs := fmt.Sprintf("X-Amz-Algorithm=AWS4-HMAC-SHA256&X-Amz-Credential=%s&X-Amz-Date=%s&X-Amz-Expires=%d&X-Amz-SignedHeaders=host",
		credential, datetime, int(ttl.Seconds()))

	host := cfg.Endpoint
	if i := strings.Index(host, "://"); i != -1 {
		host = host[i+3:]
	}

	canonicalRequest := method + "\n" + uri + "\n" + qs + "\nhost:" + host + "\n\nhost\nUNSIGNED-PAYLOAD"
	stringToSign := "AWS4-HMAC-SHA256\n" + datetime + "\n" + credScope + "\n" + sha256Hex(canonicalRequest)

	signingKey := deriveSigningKey(cfg.SecretKey, date, region, service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	scheme := "http://"
	url := scheme + host + uri + "?" + qs + "&X-Amz-Signature=" + signature

	if cfg.PublicURL != "" {
		internalBase := scheme + host
		if strings.HasPrefix(url, internalBase) {
			url = cfg.PublicURL + strings.TrimPrefix(url, internalBase)
		}
	}
	return url
}

func deriveSigningKey(secretKey, date, region, svc string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), date)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, svc)
	return hmacSHA256(kService, "aws4_request")
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
