package model

import "time"

// ClassSession represents a single scheduled occurrence of a class that
// clients can book into.  Capacity bounds the number of reservations in
// CONFIRMED state at any time; edits that would push the confirmed count
// above capacity are rejected at the boundary.  A session is removed only
// through the studio cancellation workflow, which cascades to its
// reservations and waitlist entries.
//
// Fields:
//  ID          – primary key identifier.
//  StudioID    – studio (tenant) that owns the session.
//  Title       – class name shown to clients.
//  TeacherName – assigned teacher.
//  Location    – room or address of the class.
//  StartsAt    – UTC start time.
//  EndsAt      – UTC end time.
//  Capacity    – maximum number of confirmed reservations.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type ClassSession struct {
	ID          uint64    // class_sessions.id
	StudioID    uint64    // class_sessions.studio_id
	Title       string    // class_sessions.title
	TeacherName string    // class_sessions.teacher_name
	Location    string    // class_sessions.location
	StartsAt    time.Time // class_sessions.starts_at
	EndsAt      time.Time // class_sessions.ends_at
	Capacity    uint32    // class_sessions.capacity
	CreatedAt   time.Time // class_sessions.created_at
	UpdatedAt   time.Time // class_sessions.updated_at
}
