package storage

import (
	"bytes"
	"context"
	"io/ioutil"
	"time"

	"github.com/btcjoin/receiver/logger"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/pkg/errors"
)

// Config configures an S3 backend.
type Config struct {
	Bucket     string
	Root       string
	MaxRetries int
	RetryDelay int // milliseconds
}

// DefaultConfig returns a Config with the retry behavior the S3 backend uses by default.
func DefaultConfig(bucket, root string) Config {
	return Config{
		Bucket:     bucket,
		Root:       root,
		MaxRetries: 2,
		RetryDelay: 200,
	}
}

// S3 implements Storage against an AWS S3 bucket, the production backend for session persistence
// when this receiver is deployed across multiple stateless instances.
type S3 struct {
	Config  Config
	Session *session.Session
}

// NewS3 creates an S3 backend with a fresh AWS session built from the environment's credential
// chain.
func NewS3(config Config) S3 {
	return S3{
		Config:  config,
		Session: session.New(aws.NewConfig()),
	}
}

func (s S3) key(key string) string {
	if len(s.Config.Root) == 0 {
		return key
	}
	return s.Config.Root + "/" + key
}

func (s S3) Write(ctx context.Context, key string, value []byte, opts *Options) error {
	svc := s3.New(s.Session)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(s.key(key)),
		Body:   bytes.NewReader(value),
	}

	if opts != nil && opts.TTL > 0 {
		expiry := time.Now().Add(time.Duration(opts.TTL) * time.Second)
		input.Expires = &expiry
	}

	var err error
	for i := 0; i <= s.Config.MaxRetries; i++ {
		if i != 0 {
			time.Sleep(time.Duration(s.Config.RetryDelay) * time.Millisecond)
		}

		if _, err = svc.PutObject(input); err == nil {
			return nil
		}

		logger.Error(ctx, "S3 write failed for %s : %s", key, err)
	}

	return errors.Wrapf(err, "key: %s", key)
}

func (s S3) Read(ctx context.Context, key string) ([]byte, error) {
	svc := s3.New(s.Session)

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(s.key(key)),
	}

	var err error
	for i := 0; i <= s.Config.MaxRetries; i++ {
		if i != 0 {
			time.Sleep(time.Duration(s.Config.RetryDelay) * time.Millisecond)
		}

		document, gerr := svc.GetObject(input)
		if gerr == nil {
			defer document.Body.Close()
			return ioutil.ReadAll(document.Body)
		}
		err = gerr

		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrNotFound
		}

		logger.Error(ctx, "S3 read failed for %s : %s", key, err)
	}

	return nil, errors.Wrapf(err, "key: %s", key)
}

func (s S3) Remove(ctx context.Context, key string) error {
	svc := s3.New(s.Session)

	_, err := svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.Config.Bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return errors.Wrapf(err, "key: %s", key)
	}

	return nil
}
