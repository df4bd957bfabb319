package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"
)

const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("日期格式错误，应为YYYY-MM-DD")

// Date is a nullable calendar date serialized as YYYY-MM-DD.
type Date struct {
	null.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{null.TimeFrom(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))}
}

// ParseDate accepts YYYY-MM-DD; the empty string yields a null date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Time.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ImageField names an image column of an inspection record.
type ImageField string

const (
	ImageLicenseFront    ImageField = "license_front_image"
	ImageLicenseBack     ImageField = "license_back_image"
	ImagePlate           ImageField = "plate_image"
	ImageBrakeReport     ImageField = "brake_report_image"
	ImageHeadlightReport ImageField = "headlight_report_image"
)

// UploadableImages lists the image fields accepted by the upload endpoint, in lookup order.
var UploadableImages = []ImageField{
	ImageLicenseFront, ImageLicenseBack, ImagePlate, ImageBrakeReport, ImageHeadlightReport,
}

// Folder is the media sub-directory the image is stored under.
func (f ImageField) Folder() string {
	switch f {
	case ImageLicenseFront, ImageLicenseBack:
		return "inspection/license"
	case ImagePlate:
		return "inspection/plate"
	case ImageBrakeReport:
		return "inspection/brake"
	case ImageHeadlightReport:
		return "inspection/headlight"
	}
	return "inspection/other"
}

func (f ImageField) Valid() bool {
	for _, v := range UploadableImages {
		if v == f {
			return true
		}
	}
	return false
}

// InspectionRecord is one farm-machinery driving license inspection.
type InspectionRecord struct {
	ID int `json:"id"`

	LicensePlateNumber string `json:"license_plate_number"`
	VehicleType        string `json:"vehicle_type"`
	Owner              string `json:"owner"`
	Address            string `json:"address"`
	ChassisNumber      string `json:"chassis_number"`
	TrailerFrameNumber string `json:"trailer_frame_number"`
	EngineNumber       string `json:"engine_number"`
	Brand              string `json:"brand"`
	ModelName          string `json:"model_name"`
	RegistrationDate   Date   `json:"registration_date"`
	IssueDate          Date   `json:"issue_date"`
	IssueAuthority     string `json:"issue_authority"`

	TractorMinWeight  string `json:"tractor_min_weight"`
	HarvesterWeight   string `json:"harvester_weight"`
	TractorMaxLoad    string `json:"tractor_max_load"`
	PassengerCapacity string `json:"passenger_capacity"`
	OverallDimension  string `json:"overall_dimension"`
	InspectionRecord  string `json:"inspection_record"`

	BrakeReportImage     string `json:"brake_report_image"`
	HeadlightReportImage string `json:"headlight_report_image"`
	LicenseFrontImage    string `json:"license_front_image"`
	LicenseBackImage     string `json:"license_back_image"`
	PlateImage           string `json:"plate_image"`
	PlateOCRResult       string `json:"plate_ocr_result"`

	BodyColor      string `json:"body_color"`
	ProductionDate Date   `json:"production_date"`

	OCRRawData json.RawMessage `json:"ocr_raw_data,omitempty"`

	CreatedBy null.Int  `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Image returns the stored path of an image column.
func (r *InspectionRecord) Image(f ImageField) string {
	switch f {
	case ImageLicenseFront:
		return r.LicenseFrontImage
	case ImageLicenseBack:
		return r.LicenseBackImage
	case ImagePlate:
		return r.PlateImage
	case ImageBrakeReport:
		return r.BrakeReportImage
	case ImageHeadlightReport:
		return r.HeadlightReportImage
	}
	return ""
}

func (r *InspectionRecord) SetImage(f ImageField, path string) {
	switch f {
	case ImageLicenseFront:
		r.LicenseFrontImage = path
	case ImageLicenseBack:
		r.LicenseBackImage = path
	case ImagePlate:
		r.PlateImage = path
	case ImageBrakeReport:
		r.BrakeReportImage = path
	case ImageHeadlightReport:
		r.HeadlightReportImage = path
	}
}

// OwnedBy reports whether userID created the record.
func (r *InspectionRecord) OwnedBy(userID int) bool {
	return r.CreatedBy.Valid && r.CreatedBy.Int64 == int64(userID)
}

// InspectionListItem is the summary row returned by list endpoints.
type InspectionListItem struct {
	ID                 int       `json:"id"`
	LicensePlateNumber string    `json:"license_plate_number"`
	VehicleType        string    `json:"vehicle_type"`
	Owner              string    `json:"owner"`
	Brand              string    `json:"brand"`
	ModelName          string    `json:"model_name"`
	CreatedAt          time.Time `json:"created_at"`
}

func (r *InspectionRecord) ListItem() InspectionListItem {
	return InspectionListItem{
		ID:                 r.ID,
		LicensePlateNumber: r.LicensePlateNumber,
		VehicleType:        r.VehicleType,
		Owner:              r.Owner,
		Brand:              r.Brand,
		ModelName:          r.ModelName,
		CreatedAt:          r.CreatedAt,
	}
}

// InspectionRecordInput carries the editable columns; nil means "leave as is".
type InspectionRecordInput struct {
	LicensePlateNumber *string `json:"license_plate_number"`
	VehicleType        *string `json:"vehicle_type"`
	Owner              *string `json:"owner"`
	Address            *string `json:"address"`
	ChassisNumber      *string `json:"chassis_number"`
	TrailerFrameNumber *string `json:"trailer_frame_number"`
	EngineNumber       *string `json:"engine_number"`
	Brand              *string `json:"brand"`
	ModelName          *string `json:"model_name"`
	RegistrationDate   *string `json:"registration_date"`
	IssueDate          *string `json:"issue_date"`
	IssueAuthority     *string `json:"issue_authority"`

	TractorMinWeight  *string `json:"tractor_min_weight"`
	HarvesterWeight   *string `json:"harvester_weight"`
	TractorMaxLoad    *string `json:"tractor_max_load"`
	PassengerCapacity *string `json:"passenger_capacity"`
	OverallDimension  *string `json:"overall_dimension"`
	InspectionRecord  *string `json:"inspection_record"`

	PlateOCRResult *string `json:"plate_ocr_result"`
	BodyColor      *string `json:"body_color"`
	ProductionDate *string `json:"production_date"`

	OCRRawData json.RawMessage `json:"ocr_raw_data"`
}

// ApplyTo copies every non-nil value onto rec. Dates must be YYYY-MM-DD or empty.
func (in *InspectionRecordInput) ApplyTo(rec *InspectionRecord) error {
	strs := []struct {
		src *string
		dst *string
	}{
		{in.LicensePlateNumber, &rec.LicensePlateNumber},
		{in.VehicleType, &rec.VehicleType},
		{in.Owner, &rec.Owner},
		{in.Address, &rec.Address},
		{in.ChassisNumber, &rec.ChassisNumber},
		{in.TrailerFrameNumber, &rec.TrailerFrameNumber},
		{in.EngineNumber, &rec.EngineNumber},
		{in.Brand, &rec.Brand},
		{in.ModelName, &rec.ModelName},
		{in.IssueAuthority, &rec.IssueAuthority},
		{in.TractorMinWeight, &rec.TractorMinWeight},
		{in.HarvesterWeight, &rec.HarvesterWeight},
		{in.TractorMaxLoad, &rec.TractorMaxLoad},
		{in.PassengerCapacity, &rec.PassengerCapacity},
		{in.OverallDimension, &rec.OverallDimension},
		{in.InspectionRecord, &rec.InspectionRecord},
		{in.PlateOCRResult, &rec.PlateOCRResult},
		{in.BodyColor, &rec.BodyColor},
	}
	for _, s := range strs {
		if s.src != nil {
			*s.dst = *s.src
		}
	}

	dates := []struct {
		src *string
		dst *Date
	}{
		{in.RegistrationDate, &rec.RegistrationDate},
		{in.IssueDate, &rec.IssueDate},
		{in.ProductionDate, &rec.ProductionDate},
	}
	for _, d := range dates {
		if d.src == nil {
			continue
		}
		parsed, err := ParseDate(*d.src)
		if err != nil {
			return err
		}
		*d.dst = parsed
	}

	if len(in.OCRRawData) > 0 {
		if !json.Valid(in.OCRRawData) {
			return errors.New("ocr_raw_data 不是合法的JSON")
		}
		rec.OCRRawData = in.OCRRawData
	}
	return nil
}

// InspectionFilter narrows a record listing. Zero values mean "no constraint".
type InspectionFilter struct {
	CreatedBy *int
	Keyword   string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps paging to sane bounds.
func (f *InspectionFilter) Normalize() {
	f.Keyword = strings.TrimSpace(f.Keyword)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

func (f *InspectionFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

type Page[T any] struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	Results    []T `json:"results"`
}

func NewPage[T any](results []T, total, page, pageSize int) Page[T] {
	if results == nil {
		results = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return Page[T]{Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages, Results: results}
}
