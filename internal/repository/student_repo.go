package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// StudentRepository provides access to student and teacher records.
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Student, error)
	GetTeacher(ctx context.Context, id uint) (models.Teacher, error)
	List(ctx context.Context, skip, limit int) ([]models.Student, int64, error)
	UpsertStudents(ctx context.Context, students []models.Student) (int64, error)
	UpsertTeachers(ctx context.Context, teachers []models.Teacher) (int64, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := conn(ctx, r.db).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) GetTeacher(ctx context.Context, id uint) (models.Teacher, error) {
	var teacher models.Teacher
	if err := conn(ctx, r.db).First(&teacher, id).Error; err != nil {
		return models.Teacher{}, err
	}

	return teacher, nil
}

func (r *studentRepository) List(ctx context.Context, skip, limit int) ([]models.Student, int64, error) {
	query := conn(ctx, r.db).Model(&models.Student{})

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var students []models.Student
	if err := paginate(query, skip, limit).Order("name ASC, id ASC").Find(&students).Error; err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

func (r *studentRepository) UpsertStudents(ctx context.Context, students []models.Student) (int64, error) {
	if len(students) == 0 {
		return 0, nil
	}

	result := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "grade_level", "updated_at"}),
	}).Create(&students)
	return result.RowsAffected, result.Error
}

func (r *studentRepository) UpsertTeachers(ctx context.Context, teachers []models.Teacher) (int64, error) {
	if len(teachers) == 0 {
		return 0, nil
	}

	result := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "department", "updated_at"}),
	}).Create(&teachers)
	return result.RowsAffected, result.Error
}
