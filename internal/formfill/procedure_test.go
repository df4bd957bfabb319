package formfill

import (
	"context"
	"errors"
	"strings"
	"testing"

	"agri_inspection/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	calls  int
	result string
	err    error
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ Images, _ string) (Result, error) {
	f.calls++
	if f.err != nil {
		return Result{}, f.err
	}
	return ParseResult([]byte(f.result))
}

type busyControl struct {
	busy    bool
	history []bool
}

func (b *busyControl) SetBusy(v bool) { b.busy = v; b.history = append(b.history, v) }

type notes struct {
	success []string
	failure []string
}

func (n *notes) Success(m string) { n.success = append(n.success, m) }
func (n *notes) Failure(m string) { n.failure = append(n.failure, m) }

func plateOnly() Images {
	return Images{Plate: &Image{Filename: "p.jpg", Content: strings.NewReader("x")}}
}

func newTestProcedure(t *testing.T, rec Recognizer) (*Procedure, map[string]string, *busyControl, *notes, *[]domain.OCRField) {
	t.Helper()
	values := map[string]string{"owner": "李四"}
	form, err := NewForm(MapBindings(values, domain.FieldLicensePlateNumber), nil)
	require.NoError(t, err)
	var changed []domain.OCRField
	require.NoError(t, form.OnChange(domain.FieldLicensePlateNumber, func(f domain.OCRField, _ string) {
		changed = append(changed, f)
	}))
	ctl := &busyControl{}
	n := &notes{}
	return NewProcedure(rec, form, ctl, n), values, ctl, n, &changed
}

func TestProcedureRun_NoImages(t *testing.T) {
	rec := &fakeRecognizer{}
	p, _, ctl, n, _ := newTestProcedure(t, rec)

	err := p.Run(context.Background(), Images{}, "tok")

	var v *ValidationError
	require.ErrorAs(t, err, &v)
	assert.Zero(t, rec.calls)
	assert.Equal(t, []string{"请先上传至少一张图片"}, n.failure)
	assert.Empty(t, ctl.history, "control is never toggled")
}

func TestProcedureRun_Success(t *testing.T) {
	rec := &fakeRecognizer{result: `{"license_plate_number":"京A12345","owner":""}`}
	p, values, ctl, n, changed := newTestProcedure(t, rec)

	require.NoError(t, p.Run(context.Background(), plateOnly(), "tok"))

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "京A12345", values["license_plate_number"])
	assert.Equal(t, "李四", values["owner"], "falsy values are not written")
	assert.Equal(t, []domain.OCRField{domain.FieldLicensePlateNumber}, *changed)
	assert.Equal(t, []string{"识别成功！请检查并确认表单内容"}, n.success)
	assert.Equal(t, []bool{true, false}, ctl.history)
}

func TestProcedureRun_Failures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"application error", &ApplicationError{Message: "blurry image"}, "blurry image"},
		{"transport error", &TransportError{Err: errors.New("connection refused")}, "connection refused"},
		{"untyped error", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecognizer{err: tt.err}
			p, values, ctl, n, changed := newTestProcedure(t, rec)

			err := p.Run(context.Background(), plateOnly(), "tok")

			require.Error(t, err)
			assert.Equal(t, []string{tt.message}, n.failure)
			assert.Empty(t, n.success)
			assert.Equal(t, map[string]string{"owner": "李四"}, values, "no field is modified")
			assert.Empty(t, *changed)
			assert.False(t, ctl.busy)
			assert.Equal(t, []bool{true, false}, ctl.history)
		})
	}
}

func TestProcedureRun_ReleasesControlOnPanic(t *testing.T) {
	ctl := &busyControl{}
	form, err := NewForm(nil, nil)
	require.NoError(t, err)
	p := NewProcedure(panickingRecognizer{}, form, ctl, nil)

	assert.Panics(t, func() { _ = p.Run(context.Background(), plateOnly(), "tok") })
	assert.False(t, ctl.busy)
}

type panickingRecognizer struct{}

func (panickingRecognizer) Recognize(context.Context, Images, string) (Result, error) {
	panic("engine crashed")
}

func TestProcedureRun_NilCollaborators(t *testing.T) {
	form, err := NewForm(nil, nil)
	require.NoError(t, err)
	p := NewProcedure(&fakeRecognizer{result: `{}`}, form, nil, nil)
	assert.NoError(t, p.Run(context.Background(), plateOnly(), "tok"))
}
