package drs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccessID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    parsedAccessID
		wantErr bool
	}{
		{
			name:  "bare endpoint",
			input: "minio.local:9000/mybucket/sample.vcf.gz",
			want:  parsedAccessID{Endpoint: "minio.local:9000", Bucket: "mybucket", Object: "sample.vcf.gz"},
		},
		{
			name:  "endpoint with scheme",
			input: "https://s3.example.com/genomes/hg38/sample.vcf.gz",
			want:  parsedAccessID{Endpoint: "https://s3.example.com", Bucket: "genomes", Object: "hg38/sample.vcf.gz"},
		},
		{
			name:  "inline credentials",
			input: "minio.local/bucket/obj?access=AK&secret=SK",
			want:  parsedAccessID{Endpoint: "minio.local", Bucket: "bucket", Object: "obj", Access: "AK", Secret: "SK"},
		},
		{
			name:  "public object",
			input: "minio.local/bucket/obj?public=true",
			want:  parsedAccessID{Endpoint: "minio.local", Bucket: "bucket", Object: "obj", Public: true},
		},
		{
			name:    "missing object",
			input:   "minio.local/bucket",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := parseAccessID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *parsed)
		})
	}
}

func TestQueueItemName(t *testing.T) {
	name := QueueItemName("pilot", "obj-1")
	assert.Equal(t, "pilot~obj-1", name)

	cohort, objectID := ParseQueueItemName(name)
	assert.Equal(t, "pilot", cohort)
	assert.Equal(t, "obj-1", objectID)

	// legacy names without a separator carry only the object id
	cohort, objectID = ParseQueueItemName("obj-2")
	assert.Equal(t, "", cohort)
	assert.Equal(t, "obj-2", objectID)
}
