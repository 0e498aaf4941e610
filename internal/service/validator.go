package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("service")

const schemaResource = "mem://inline/schema.json"

// ValidatorService is the JSON Schema oracle. Compiled schemas are cached
// by the xxh3 hash of their raw bytes, so a hot document's schema compiles
// once.
type ValidatorService struct {
	cache *cache.Cache
}

func NewValidatorService() *ValidatorService {
	return &ValidatorService{
		cache: cache.New(30*time.Minute, 1*time.Hour),
	}
}

// Validate checks value against schema. It returns one human-readable
// violation per failing leaf, or an error when the schema itself is
// unusable.
func (s *ValidatorService) Validate(ctx context.Context, schema json.RawMessage, value any) ([]string, error) {
	_, span := tracer.Start(ctx, "Validator.Service.Validate")
	defer span.End()

	compiled, err := s.compile(schema)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// round-trip so the instance is in the decoder's preferred shape
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "value not encodable")
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "value not decodable")
	}

	err = compiled.Validate(instance)
	if err == nil {
		return nil, nil
	}

	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		return flatten(ve, nil), nil
	}
	return []string{err.Error()}, nil
}

func (s *ValidatorService) compile(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := fmt.Sprintf("%016x", xxh3.Hash(schema))
	if cached, found := s.cache.Get(key); found {
		return cached.(*jsonschema.Schema), nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return nil, errors.Wrap(err, "schema not decodable")
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, doc); err != nil {
		return nil, errors.Wrap(err, "schema not loadable")
	}
	compiled, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, errors.Wrap(err, "schema not compilable")
	}

	s.cache.Set(key, compiled, cache.DefaultExpiration)
	return compiled, nil
}

func flatten(ve *jsonschema.ValidationError, out []string) []string {
	if len(ve.Causes) == 0 {
		return append(out, ve.Error())
	}
	for _, cause := range ve.Causes {
		out = flatten(cause, out)
	}
	return out
}
