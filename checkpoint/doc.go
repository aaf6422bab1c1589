// Package checkpoint records pipeline progress after each completed
// step so an interrupted run can resume without repeating work.
package checkpoint
