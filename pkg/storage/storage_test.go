package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isassess/isassess/pkg/apperr"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

func TestEvidenceKey(t *testing.T) {
	now := time.Date(2024, 3, 1, 20, 15, 30, 0, time.UTC)

	tests := []struct {
		name     string
		app      string
		filename string
		want     string
	}{
		{"plain", "payroll", "report.pdf", "app_evidences/payroll/report_20240302_014530.pdf"},
		{"unsafe characters", "pay roll", "scan (1).PNG", "app_evidences/pay roll/scan__1__20240302_014530.PNG"},
		{"application name kept verbatim", "Payment Gateway", "report.pdf", "app_evidences/Payment Gateway/report_20240302_014530.pdf"},
		{"double extension", "crm", "dump.tar.gz", "app_evidences/crm/dump.tar_20240302_014530.gz"},
		{"dot file", "crm", ".env", "app_evidences/crm/.env_20240302_014530"},
		{"path stripped", "crm", "../../etc/passwd", "app_evidences/crm/passwd_20240302_014530"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvidenceKey(tt.app, tt.filename, now, ist)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvidenceKeyRequiresNames(t *testing.T) {
	_, err := EvidenceKey("crm", "", time.Now(), ist)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = EvidenceKey(" ", "a.txt", time.Now(), ist)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	for _, app := range []string{"crm/../secrets", "a\\b", "x..y"} {
		_, err = EvidenceKey(app, "a.txt", time.Now(), ist)
		assert.True(t, apperr.Is(err, apperr.KindValidation), app)
	}
}

func TestValidateKey(t *testing.T) {
	key, err := ValidateKey("/app_evidences/crm/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "app_evidences/crm/a.pdf", key)

	_, err = ValidateKey("secrets/a.pdf")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = ValidateKey("app_evidences/../secrets")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)

	key := "app_evidences/crm/a_20240101_000000.txt"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("hello"), "text/plain"))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	url, err := store.URL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "/files?key=app_evidences%2Fcrm%2Fa_20240101_000000.txt", url)

	_, err = store.Open(ctx, "app_evidences/crm/missing.txt")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = store.Put(ctx, "elsewhere/a.txt", strings.NewReader("x"), "text/plain")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

type fakeS3 struct {
	put *s3.PutObjectInput
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = params
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("data"))}, nil
}

type fakePresigner struct {
	expires time.Duration
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://bucket.s3.amazonaws.com/" + *params.Key + "?sig=1"}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{}
	presigner := &fakePresigner{}
	store := NewS3StoreWith(client, presigner, "evidence", 15*time.Minute)

	require.NoError(t, store.Put(ctx, "app_evidences/crm/a.pdf", strings.NewReader("x"), "application/pdf"))
	require.NotNil(t, client.put)
	assert.Equal(t, "evidence", *client.put.Bucket)
	assert.Equal(t, "application/pdf", *client.put.ContentType)

	url, err := store.URL(ctx, "app_evidences/crm/a.pdf")
	require.NoError(t, err)
	assert.Contains(t, url, "app_evidences/crm/a.pdf")
	assert.Equal(t, 15*time.Minute, presigner.expires)
}
