package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"agri_inspection/internal/domain"
	"agri_inspection/internal/formfill"
)

// console reports busy state and outcomes on the terminal.
type console struct {
	w io.Writer
}

func (c console) SetBusy(busy bool) {
	if busy {
		fmt.Fprintln(c.w, "识别中...")
	}
}

func (c console) Success(message string) { fmt.Fprintln(c.w, message) }
func (c console) Failure(message string) { fmt.Fprintln(c.w, "识别失败: "+message) }

func openImage(path string) (*formfill.Image, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return &formfill.Image{Filename: filepath.Base(path), Content: f}, func() { f.Close() }, nil
}

func loadDraft(path string) (map[string]string, error) {
	values := map[string]string{}
	if path == "" {
		return values, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse form %s: %w", path, err)
	}
	return values, nil
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	var images formfill.Images
	for _, src := range []struct {
		path string
		dst  **formfill.Image
	}{
		{opts.front, &images.LicenseFront},
		{opts.back, &images.LicenseBack},
		{opts.plate, &images.Plate},
	} {
		img, closeFn, err := openImage(src.path)
		if err != nil {
			return err
		}
		defer closeFn()
		*src.dst = img
	}

	values, err := loadDraft(opts.formPath)
	if err != nil {
		return err
	}

	clientOpts := []formfill.Option{formfill.WithAuthToken(opts.authToken)}
	if opts.endpoint != "" {
		clientOpts = append(clientOpts, formfill.WithEndpoint(opts.endpoint))
	}
	client, err := formfill.NewClient(opts.server, clientOpts...)
	if err != nil {
		return err
	}

	form, err := formfill.NewForm(
		formfill.MapBindings(values, domain.FieldLicensePlateNumber, domain.FieldRegistrationDate, domain.FieldIssueDate),
		formfill.MapInput{Values: values, Key: domain.OCRRawDataKey},
	)
	if err != nil {
		return err
	}
	ui := console{w: stderr}
	_ = form.OnChange(domain.FieldLicensePlateNumber, func(_ domain.OCRField, v string) {
		fmt.Fprintf(stderr, "号牌号码: %s\n", v)
	})
	checkDate := func(field domain.OCRField, v string) {
		if _, err := domain.ParseDate(v); err != nil {
			fmt.Fprintf(stderr, "警告: %s 的值 %q 不是YYYY-MM-DD格式，请手动修改\n", field, v)
		}
	}
	_ = form.OnChange(domain.FieldRegistrationDate, checkDate)
	_ = form.OnChange(domain.FieldIssueDate, checkDate)

	// Skip the token round trip when there is nothing to send.
	token := ""
	if !images.Empty() {
		if token, err = client.FetchToken(ctx); err != nil {
			ui.Failure(err.Error())
			return err
		}
	}
	if err := formfill.NewProcedure(client, form, ui, ui).Run(ctx, images, token); err != nil {
		return err
	}
	return writeForm(values, opts.outPath, stdout)
}

func writeForm(values map[string]string, path string, stdout io.Writer) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
