package blob

import "strings"

// S3Config configures an S3 or S3-compatible (MinIO) bucket.
type S3Config struct {
	BucketName string `json:"bucket" mapstructure:"bucket"`
	Region     string `json:"region" mapstructure:"region"`
	AccessKey  string `json:"access_key" mapstructure:"access_key"`
	SecretKey  string `json:"secret_key" mapstructure:"secret_key"`
	Endpoint   string `json:"endpoint" mapstructure:"endpoint"`
	Prefix     string `json:"prefix" mapstructure:"prefix"`
}

func (c *S3Config) Validate() error {
	if c == nil || c.BucketName == "" || c.Region == "" {
		return ErrNotConfigured
	}
	return nil
}

func (c *S3Config) key(address string) string {
	prefix := strings.Trim(c.Prefix, "/")
	if prefix == "" {
		return "blobs/" + address
	}
	return prefix + "/blobs/" + address
}
