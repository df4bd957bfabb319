package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"agri_inspection/internal/domain"
	"agri_inspection/internal/repository"

	"github.com/lib/pq"
)

type pgInspectionRepository struct {
	db *sql.DB
}

func NewPgInspectionRepository(db *sql.DB) repository.InspectionRepository {
	return &pgInspectionRepository{db: db}
}

const inspectionColumns = `id, license_plate_number, vehicle_type, owner, address, chassis_number,
	trailer_frame_number, engine_number, brand, model_name, registration_date, issue_date,
	issue_authority, tractor_min_weight, harvester_weight, tractor_max_load, passenger_capacity,
	overall_dimension, inspection_record, brake_report_image, headlight_report_image,
	license_front_image, license_back_image, plate_image, plate_ocr_result, body_color,
	production_date, ocr_raw_data, created_by, created_at, updated_at`

// editableColumns are written by Create and Update, in argument order.
var editableColumns = []string{
	"license_plate_number", "vehicle_type", "owner", "address", "chassis_number",
	"trailer_frame_number", "engine_number", "brand", "model_name", "registration_date", "issue_date",
	"issue_authority", "tractor_min_weight", "harvester_weight", "tractor_max_load", "passenger_capacity",
	"overall_dimension", "inspection_record", "brake_report_image", "headlight_report_image",
	"license_front_image", "license_back_image", "plate_image", "plate_ocr_result", "body_color",
	"production_date", "ocr_raw_data",
}

func editableArgs(rec *domain.InspectionRecord) []any {
	return []any{
		rec.LicensePlateNumber, rec.VehicleType, rec.Owner, rec.Address, rec.ChassisNumber,
		rec.TrailerFrameNumber, rec.EngineNumber, rec.Brand, rec.ModelName, rec.RegistrationDate, rec.IssueDate,
		rec.IssueAuthority, rec.TractorMinWeight, rec.HarvesterWeight, rec.TractorMaxLoad, rec.PassengerCapacity,
		rec.OverallDimension, rec.InspectionRecord, rec.BrakeReportImage, rec.HeadlightReportImage,
		rec.LicenseFrontImage, rec.LicenseBackImage, rec.PlateImage, rec.PlateOCRResult, rec.BodyColor,
		rec.ProductionDate, nullableJSON(rec.OCRRawData),
	}
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func scanInspection(row interface{ Scan(...any) error }, rec *domain.InspectionRecord) error {
	var raw []byte
	err := row.Scan(
		&rec.ID, &rec.LicensePlateNumber, &rec.VehicleType, &rec.Owner, &rec.Address, &rec.ChassisNumber,
		&rec.TrailerFrameNumber, &rec.EngineNumber, &rec.Brand, &rec.ModelName, &rec.RegistrationDate, &rec.IssueDate,
		&rec.IssueAuthority, &rec.TractorMinWeight, &rec.HarvesterWeight, &rec.TractorMaxLoad, &rec.PassengerCapacity,
		&rec.OverallDimension, &rec.InspectionRecord, &rec.BrakeReportImage, &rec.HeadlightReportImage,
		&rec.LicenseFrontImage, &rec.LicenseBackImage, &rec.PlateImage, &rec.PlateOCRResult, &rec.BodyColor,
		&rec.ProductionDate, &raw, &rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		rec.OCRRawData = json.RawMessage(raw)
	}
	rec.CreatedAt = rec.CreatedAt.In(time.UTC)
	rec.UpdatedAt = rec.UpdatedAt.In(time.UTC)
	return nil
}

func (r *pgInspectionRepository) Create(ctx context.Context, rec *domain.InspectionRecord) (*domain.InspectionRecord, error) {
	placeholders := make([]string, 0, len(editableColumns)+1)
	for i := range editableColumns {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}
	placeholders = append(placeholders, fmt.Sprintf("$%d", len(editableColumns)+1))

	query := fmt.Sprintf(`INSERT INTO inspection_record (%s, created_by, created_at, updated_at)
	           VALUES (%s, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`,
		strings.Join(editableColumns, ", "), strings.Join(placeholders, ", "))

	args := append(editableArgs(rec), rec.CreatedBy)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("InspectionRepository.Create: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.In(time.UTC)
	rec.UpdatedAt = rec.UpdatedAt.In(time.UTC)
	return rec, nil
}

func (r *pgInspectionRepository) FindByID(ctx context.Context, id int) (*domain.InspectionRecord, error) {
	rec := &domain.InspectionRecord{}
	query := `SELECT ` + inspectionColumns + ` FROM inspection_record WHERE id = $1`
	if err := scanInspection(r.db.QueryRowContext(ctx, query, id), rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("InspectionRepository.FindByID: %w", err)
	}
	return rec, nil
}

func (r *pgInspectionRepository) FindByIDs(ctx context.Context, ids []int, createdBy *int) ([]domain.InspectionRecord, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspection_record WHERE id = ANY($1)`
	args := []any{pq.Array(ids)}
	if createdBy != nil {
		query += ` AND created_by = $2`
		args = append(args, *createdBy)
	}
	query += ` ORDER BY created_at DESC`
	return r.query(ctx, "FindByIDs", query, args...)
}

func (r *pgInspectionRepository) Find(ctx context.Context, filter domain.InspectionFilter) ([]domain.InspectionRecord, int, error) {
	var conditions []string
	var args []any
	argID := 1

	if filter.CreatedBy != nil {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", argID))
		args = append(args, *filter.CreatedBy)
		argID++
	}
	if filter.Keyword != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(license_plate_number ILIKE $%d OR owner ILIKE $%d OR chassis_number ILIKE $%d)", argID, argID, argID))
		args = append(args, "%"+escapeLike(filter.Keyword)+"%")
		argID++
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at::date >= $%d", argID))
		args = append(args, filter.StartDate.Format(domain.DateLayout))
		argID++
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at::date <= $%d", argID))
		args = append(args, filter.EndDate.Format(domain.DateLayout))
		argID++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inspection_record`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("InspectionRepository.Find (count): %w", err)
	}

	query := `SELECT ` + inspectionColumns + ` FROM inspection_record` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, filter.PageSize, filter.Offset())

	records, err := r.query(ctx, "Find", query, args...)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *pgInspectionRepository) query(ctx context.Context, op, query string, args ...any) ([]domain.InspectionRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("InspectionRepository.%s: %w", op, err)
	}
	defer rows.Close()

	var records []domain.InspectionRecord
	for rows.Next() {
		var rec domain.InspectionRecord
		if err := scanInspection(rows, &rec); err != nil {
			return nil, fmt.Errorf("InspectionRepository.%s (scanning row): %w", op, err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("InspectionRepository.%s (rows error): %w", op, err)
	}
	return records, nil
}

func (r *pgInspectionRepository) Update(ctx context.Context, rec *domain.InspectionRecord) (*domain.InspectionRecord, error) {
	sets := make([]string, 0, len(editableColumns))
	for i, col := range editableColumns {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
	}
	query := fmt.Sprintf(`UPDATE inspection_record SET %s, updated_at = CURRENT_TIMESTAMP WHERE id = $%d RETURNING updated_at`,
		strings.Join(sets, ", "), len(editableColumns)+1)

	args := append(editableArgs(rec), rec.ID)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("InspectionRepository.Update: %w", err)
	}
	rec.UpdatedAt = rec.UpdatedAt.In(time.UTC)
	return rec, nil
}

func (r *pgInspectionRepository) UpdateImage(ctx context.Context, id int, field domain.ImageField, path string) error {
	if !field.Valid() {
		return fmt.Errorf("InspectionRepository.UpdateImage: unknown image field %q", field)
	}
	// field is validated against a fixed list, so interpolating the column name is safe
	query := fmt.Sprintf(`UPDATE inspection_record SET %s = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, string(field))
	result, err := r.db.ExecContext(ctx, query, path, id)
	if err != nil {
		return fmt.Errorf("InspectionRepository.UpdateImage: %w", err)
	}
	return requireAffected(result, "InspectionRepository.UpdateImage")
}

func (r *pgInspectionRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM inspection_record WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("InspectionRepository.Delete: %w", err)
	}
	return requireAffected(result, "InspectionRepository.Delete")
}

func requireAffected(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s (checking rows affected): %w", op, err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
