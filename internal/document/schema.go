package document

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
	schemaMu   sync.Mutex
)

func documentSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile document schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Document"))
		if !schemaDef.Exists() {
			schemaErr = fmt.Errorf("document schema has no #Document definition")
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

// ValidateSchema checks raw JSON against the embedded document schema.
// Failures are FORMAT_ERROR and name the first offending path.
//
// A cue.Context is not safe for concurrent use, so validations are
// serialized.
func ValidateSchema(data []byte) error {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, def, err := documentSchema()
	if err != nil {
		return err
	}
	v := ctx.CompileBytes(data, cue.Filename("document.json"))
	if err := v.Err(); err != nil {
		return NewError(ErrCodeFormat, "", "parse document: %s", firstCUEError(err))
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return NewError(ErrCodeFormat, "", "document does not match schema: %s", firstCUEError(err))
	}
	return nil
}

func firstCUEError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	e := errs[0]
	path := e.Path()
	format, args := e.Msg()
	msg := fmt.Sprintf(format, args...)
	if len(path) > 0 {
		return fmt.Sprintf("%s: %s", strings.Join(path, "."), msg)
	}
	return msg
}
