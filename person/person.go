// Package person holds the Person and Task entities, their metamodel and
// the person DAO.
package person

import (
	"context"
	"fmt"
	"strings"

	"github.com/lemmego/gdao"
	"github.com/uptrace/bun"
)

// Person owns an ordered list of tasks. Tasks are saved and deleted with
// their person, and tasks dropped from the list are deleted on update.
type Person struct {
	bun.BaseModel `bun:"table:person,alias:person" gorm:"-" bson:"-"`

	ID    int64   `gorm:"primaryKey" bun:"id,pk,autoincrement" bson:"_id"`
	Name  string  `gorm:"size:255;not null" bun:"name,notnull" bson:"name"`
	Age   int     `gorm:"not null" bun:"age,notnull" bson:"age"`
	Tasks []*Task `gorm:"foreignKey:PersonID" bun:"rel:has-many,join:id=person_id" bson:"-"`
}

func (Person) TableName() string { return "person" }

func (p *Person) String() string {
	return fmt.Sprintf("Person{id=%d, name=%q, age=%d, tasks=%d}", p.ID, p.Name, p.Age, len(p.Tasks))
}

// AddTask appends a task and points it at p
func (p *Person) AddTask(t *Task) {
	t.PersonID = p.ID
	t.Person = p
	p.Tasks = append(p.Tasks, t)
}

// Task belongs to exactly one person
type Task struct {
	bun.BaseModel `bun:"table:task,alias:task" gorm:"-" bson:"-"`

	ID       int64   `gorm:"primaryKey" bun:"id,pk,autoincrement" bson:"_id"`
	Name     string  `gorm:"size:255;not null" bun:"name,notnull" bson:"name"`
	PersonID int64   `gorm:"not null;index" bun:"person_id,notnull" bson:"person_id"`
	Person   *Person `gorm:"foreignKey:PersonID" bun:"rel:belongs-to,join:person_id=id" bson:"-"`
}

func (Task) TableName() string { return "task" }

// =====================================
// Metamodel
// =====================================

var (
	Model     = gdao.NewEntity("person", "id", func(p *Person) int64 { return p.ID })
	TaskModel = gdao.NewEntity("task", "id", func(t *Task) int64 { return t.ID })

	ID   = gdao.NewNumberAttribute[int64](Model, "id")
	Name = gdao.NewStringAttribute(Model, "name")
	Age  = gdao.NewNumberAttribute[int](Model, "age")

	TaskName = gdao.NewStringAttribute(TaskModel, "name")

	// Tasks is the owned task collection, joined as "tasks"
	Tasks = gdao.NewCollection(Model, TaskModel, gdao.CollectionOf[Person, int64, Task]{
		Name:       "tasks",
		ForeignKey: "person_id",
		Get:        func(p *Person) []*Task { return p.Tasks },
		Set:        func(p *Person, tasks []*Task) { p.Tasks = tasks },
		Owner:      func(t *Task) int64 { return t.PersonID },
		Link: func(p *Person, t *Task) {
			t.PersonID = p.ID
			t.Person = p
		},
	})
)

// =====================================
// Validation
// =====================================

// Validate requires a name and a non-negative age
func (p *Person) Validate(context.Context) error {
	if strings.TrimSpace(p.Name) == "" {
		return gdao.NewError(gdao.ErrorTypeValidation, "person name is required")
	}
	if p.Age < 0 {
		return gdao.NewError(gdao.ErrorTypeValidation, fmt.Sprintf("person age must not be negative, got %d", p.Age))
	}
	return nil
}

// Validate requires a task name
func (t *Task) Validate(context.Context) error {
	if strings.TrimSpace(t.Name) == "" {
		return gdao.NewError(gdao.ErrorTypeValidation, "task name is required")
	}
	return nil
}
