package service

import (
	"encoding/json"

	"github.com/noah-isme/learnflow-api/internal/dto"
)

func intRef(v int) *int { return &v }

// DefaultSeedContent is the built-in demo dataset.
func DefaultSeedContent() dto.SeedContentRequest {
	return dto.SeedContentRequest{
		Teachers: []dto.SeedTeacher{
			{Name: "Dewi Lestari", Email: "dewi@learnflow.dev", Department: "Computer Science"},
		},
		Students: []dto.SeedStudent{
			{Name: "Ana Putri", Email: "ana@learnflow.dev", GradeLevel: "10"},
			{Name: "Budi Santoso", Email: "budi@learnflow.dev", GradeLevel: "10"},
			{Name: "Citra Wulandari", Email: "citra@learnflow.dev", GradeLevel: "11"},
		},
		Exercises: []dto.SeedExercise{
			{
				Title:           "Sum of a list",
				Description:     "Write a function total(numbers) that returns the sum of a list of integers.",
				DifficultyLevel: "beginner",
				Topic:           "loops",
				StarterCode:     "def total(numbers):\n    pass\n",
				ExpectedOutput:  "total([1, 2, 3]) == 6",
				TeacherEmail:    "dewi@learnflow.dev",
			},
			{
				Title:           "FizzBuzz",
				Description:     "Print the numbers 1 to 15, replacing multiples of 3 with Fizz, multiples of 5 with Buzz and multiples of both with FizzBuzz.",
				DifficultyLevel: "beginner",
				Topic:           "conditionals",
				StarterCode:     "for i in range(1, 16):\n    pass\n",
				TeacherEmail:    "dewi@learnflow.dev",
			},
		},
		Quizzes: []dto.SeedQuiz{
			{
				Title:        "Python basics",
				Description:  "Variables, types and loops.",
				TeacherEmail: "dewi@learnflow.dev",
				PassingScore: intRef(70),
				Questions: []dto.SeedQuestion{
					{
						QuestionText:  "Which keyword defines a function in Python?",
						QuestionType:  "multiple_choice",
						Options:       json.RawMessage(`["func", "def", "lambda", "fn"]`),
						CorrectAnswer: json.RawMessage(`"def"`),
					},
					{
						QuestionText:  "Lists in Python are immutable.",
						QuestionType:  "true_false",
						CorrectAnswer: json.RawMessage(`false`),
						Explanation:   "Lists can be changed in place; tuples cannot.",
					},
					{
						QuestionText:  "Which built-in returns the number of items in a list?",
						QuestionType:  "short_answer",
						CorrectAnswer: json.RawMessage(`"len"`),
						Points:        intRef(2),
					},
				},
			},
		},
	}
}
