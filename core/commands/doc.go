// Package commands implements the timed command mini-language exchanged with
// the planner and executed against the actuator.
//
// A script is zero or more tokens separated by ';'. Each token is an action
// letter and a duration in seconds separated by ':', for example
//
//	U:3;R:1.5;S:0.5;
//
// Action letters are case-insensitive and come from an [Alphabet], the
// default being U (up), D (down), L (left), R (right) and S (stop).
package commands
