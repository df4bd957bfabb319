package formfill

import (
	"context"
	"errors"
)

// Control is the trigger of the procedure. It is busy while a request is in flight.
type Control interface {
	SetBusy(busy bool)
}

// Notifier shows the outcome to the operator.
type Notifier interface {
	Success(message string)
	Failure(message string)
}

// Recognizer is satisfied by *Client.
type Recognizer interface {
	Recognize(ctx context.Context, images Images, token string) (Result, error)
}

const msgSuccess = "识别成功！请检查并确认表单内容"

// Procedure runs one upload-and-recognize cycle against a form.
type Procedure struct {
	recognizer Recognizer
	form       *Form
	control    Control
	notifier   Notifier
}

// NewProcedure wires the collaborators. control and notifier may be nil.
func NewProcedure(r Recognizer, form *Form, control Control, notifier Notifier) *Procedure {
	if control == nil {
		control = noopControl{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Procedure{recognizer: r, form: form, control: control, notifier: notifier}
}

// Run recognizes images and fills the form on success. Every outcome is
// reported through the notifier and returned. The control is released on all paths.
func (p *Procedure) Run(ctx context.Context, images Images, token string) error {
	if images.Empty() {
		p.notifier.Failure(msgNoImage)
		return &ValidationError{Message: msgNoImage}
	}

	p.control.SetBusy(true)
	defer p.control.SetBusy(false)

	result, err := p.recognizer.Recognize(ctx, images, token)
	if err != nil {
		var appErr *ApplicationError
		var trErr *TransportError
		var valErr *ValidationError
		switch {
		case errors.As(err, &appErr):
			p.notifier.Failure(appErr.Message)
		case errors.As(err, &trErr):
			p.notifier.Failure(trErr.Error())
		case errors.As(err, &valErr):
			p.notifier.Failure(valErr.Message)
		default:
			err = &TransportError{Err: err}
			p.notifier.Failure(err.Error())
		}
		return err
	}

	p.form.Fill(result)
	p.notifier.Success(msgSuccess)
	return nil
}

type noopControl struct{}

func (noopControl) SetBusy(bool) {}

type noopNotifier struct{}

func (noopNotifier) Success(string) {}
func (noopNotifier) Failure(string) {}
