// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package plugin

import (
	"context"
	"fmt"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/juju/environschema.v1"
)

const (
	// RepositoryS3Name is the name of the S3 snapshot repository plugin.
	RepositoryS3Name = "repository-s3"

	// S3CredentialsRelation is the relation the S3 credentials are
	// published on.
	S3CredentialsRelation = "s3-credentials"

	// S3RepositoryName is the snapshot repository registered once the
	// plugin is enabled.
	S3RepositoryName = "charmed-s3-repository"

	s3RepositoryType  = "s3"
	s3DefaultBasePath = "/"
)

// Keys published by the s3-integrator on the s3-credentials relation.
const (
	s3BucketKey    = "bucket"
	s3RegionKey    = "region"
	s3AccessKeyKey = "access-key"
	s3SecretKeyKey = "secret-key"
	s3EndpointKey  = "endpoint"
	s3PathKey      = "path"
)

const (
	s3ClientPrefix    = "s3.client.default."
	s3ConfigEndpoint  = s3ClientPrefix + "endpoint"
	s3ConfigRegion    = s3ClientPrefix + "region"
	s3SecretAccessKey = s3ClientPrefix + "access_key"
	s3SecretSecretKey = s3ClientPrefix + "secret_key"
)

// s3ClientDefaults are written alongside the relation supplied settings.
var s3ClientDefaults = map[string]string{
	s3ClientPrefix + "max_retries":          "3",
	s3ClientPrefix + "path_style_access":    "false",
	s3ClientPrefix + "protocol":             "https",
	s3ClientPrefix + "read_timeout":         "50s",
	s3ClientPrefix + "use_throttle_retries": "true",
}

var s3CredentialsSchema = environschema.Fields{
	s3BucketKey: {
		Description: "The bucket snapshots are stored in.",
		Type:        environschema.Tstring,
		Mandatory:   true,
	},
	s3RegionKey: {
		Description: "The region of the bucket.",
		Type:        environschema.Tstring,
		Mandatory:   true,
	},
	s3AccessKeyKey: {
		Description: "The S3 access key.",
		Type:        environschema.Tstring,
		Mandatory:   true,
		Secret:      true,
	},
	s3SecretKeyKey: {
		Description: "The S3 secret key.",
		Type:        environschema.Tstring,
		Mandatory:   true,
		Secret:      true,
	},
	s3EndpointKey: {
		Description: "The S3 endpoint, if not the AWS default.",
		Type:        environschema.Tstring,
	},
	s3PathKey: {
		Description: "The path inside the bucket.",
		Type:        environschema.Tstring,
	},
}

// S3Credentials holds the validated content of the s3-credentials
// relation.
type S3Credentials struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	Path      string
}

// ParseS3Credentials validates the application data published on the
// s3-credentials relation. Every missing mandatory field is reported in
// the returned error, which satisfies ErrMissingConfig.
func ParseS3Credentials(data map[string]string) (S3Credentials, error) {
	var missing []string
	attrs := make(map[string]interface{})
	for name, field := range s3CredentialsSchema {
		value, ok := data[name]
		if !ok || value == "" {
			if field.Mandatory {
				missing = append(missing, name)
			}
			continue
		}
		attrs[name] = value
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return S3Credentials{}, errors.WithType(
			errors.Errorf("missing s3 info: %v", missing), ErrMissingConfig)
	}

	fields, defaults, err := s3CredentialsSchema.ValidationSchema()
	if err != nil {
		return S3Credentials{}, errors.Trace(err)
	}
	coerced, err := schema.FieldMap(fields, defaults).Coerce(attrs, nil)
	if err != nil {
		return S3Credentials{}, errors.WithType(
			errors.Annotate(err, "invalid s3 info"), ErrMissingConfig)
	}
	valid := coerced.(map[string]interface{})
	str := func(key string) string {
		v, _ := valid[key].(string)
		return v
	}
	return S3Credentials{
		Bucket:    str(s3BucketKey),
		Region:    str(s3RegionKey),
		AccessKey: str(s3AccessKeyKey),
		SecretKey: str(s3SecretKeyKey),
		Endpoint:  str(s3EndpointKey),
		Path:      str(s3PathKey),
	}, nil
}

// RepositoryS3 is the snapshot repository plugin backed by S3. It is
// requested by relating the unit to an s3-integrator.
type RepositoryS3 struct {
	version string
	data    map[string]string
}

// NewRepositoryS3 returns the S3 repository plugin, configured from the
// s3-credentials relation if it is established.
func NewRepositoryS3(ctx context.Context, env Env) (Plugin, error) {
	data, err := env.relationData(ctx, S3CredentialsRelation)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %q relation data", S3CredentialsRelation)
	}
	return &RepositoryS3{
		version: env.version(RepositoryS3Name),
		data:    data,
	}, nil
}

// Name is part of the Plugin interface.
func (*RepositoryS3) Name() string {
	return RepositoryS3Name
}

// Dependencies is part of the Plugin interface.
func (*RepositoryS3) Dependencies() []string {
	return nil
}

// Version is part of the Plugin interface.
func (p *RepositoryS3) Version() string {
	return p.version
}

// credentials returns the credentials published on the relation. It fails
// with ErrMissingConfig until the relation carries complete credentials.
func (p *RepositoryS3) credentials() (S3Credentials, error) {
	if p.data == nil {
		return S3Credentials{}, errors.WithType(
			errors.Errorf("relation %q not established", S3CredentialsRelation), ErrMissingConfig)
	}
	creds, err := ParseS3Credentials(p.data)
	return creds, errors.Trace(err)
}

// EnableDelta is part of the Plugin interface. It fails with
// ErrMissingConfig until the relation carries complete credentials.
func (p *RepositoryS3) EnableDelta() (Delta, error) {
	creds, err := p.credentials()
	if err != nil {
		return Delta{}, errors.Trace(err)
	}

	var toDelete []string
	config := make(map[string]string, len(s3ClientDefaults)+2)
	for k, v := range s3ClientDefaults {
		config[k] = v
	}
	config[s3ConfigRegion] = creds.Region
	if creds.Endpoint != "" {
		config[s3ConfigEndpoint] = creds.Endpoint
	} else {
		toDelete = append(toDelete, s3ConfigEndpoint)
	}
	return Delta{
		ConfigToAdd:    config,
		ConfigToDelete: toDelete,
		SecretsToAdd: map[string]string{
			s3SecretAccessKey: creds.AccessKey,
			s3SecretSecretKey: creds.SecretKey,
		},
	}, nil
}

// DisableDelta is part of the Plugin interface. Disabling only needs the
// keys, so it works after the relation is gone.
func (p *RepositoryS3) DisableDelta() (Delta, error) {
	keys := []string{s3ConfigEndpoint, s3ConfigRegion}
	for k := range s3ClientDefaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Delta{
		ConfigToDelete:  keys,
		SecretsToDelete: []string{s3SecretAccessKey, s3SecretSecretKey},
	}, nil
}

// SnapshotRepository is part of the RepositoryProvider interface. The
// repository points at the bucket and path published on the relation.
func (p *RepositoryS3) SnapshotRepository() (SnapshotRepository, error) {
	creds, err := p.credentials()
	if err != nil {
		return SnapshotRepository{}, errors.Trace(err)
	}
	basePath := creds.Path
	if basePath == "" {
		basePath = s3DefaultBasePath
	}
	return SnapshotRepository{
		Name: S3RepositoryName,
		Type: s3RepositoryType,
		Settings: map[string]string{
			"bucket":    creds.Bucket,
			"base_path": basePath,
		},
	}, nil
}

// String implements fmt.Stringer without leaking credentials.
func (c S3Credentials) String() string {
	return fmt.Sprintf("s3://%s/%s (region %s)", c.Bucket, c.Path, c.Region)
}
