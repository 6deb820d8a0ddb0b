package service

import "errors"

var (
	// ErrSubmissionNotFound indicates the submission was not located.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrTeamNotFound indicates the team was not located.
	ErrTeamNotFound = errors.New("team not found")
	// ErrProblemNotFound indicates the problem was not located.
	ErrProblemNotFound = errors.New("problem not found")
	// ErrTeamNameTaken indicates another team already uses the name.
	ErrTeamNameTaken = errors.New("team name already taken")
	// ErrTeamUpdate indicates the team total could not be changed; the grade was not saved.
	ErrTeamUpdate = errors.New("team score update failed")
	// ErrStore wraps any other persistence failure.
	ErrStore = errors.New("store operation failed")
	// ErrInvalidEvaluation indicates an evaluation label outside the known verdicts.
	ErrInvalidEvaluation = errors.New("invalid evaluation")
	// ErrInvalidCorrectCases indicates a correct-case count outside the submission's range.
	ErrInvalidCorrectCases = errors.New("invalid correct cases")
	// ErrPossiblePointsMismatch indicates the judge graded against stale problem points.
	ErrPossiblePointsMismatch = errors.New("possible points do not match the submission")
	// ErrGradingBusy indicates the team round lock could not be acquired in time.
	ErrGradingBusy = errors.New("grading busy, try again")
	// ErrEmptySource indicates an upload without content.
	ErrEmptySource = errors.New("submission source is empty")
	// ErrSourceTooLarge indicates an upload above the configured limit.
	ErrSourceTooLarge = errors.New("submission source too large")
	// ErrUnsupportedSource indicates binary content where source code was expected.
	ErrUnsupportedSource = errors.New("submission source must be text")
	// ErrInvalidRound indicates an unknown round name.
	ErrInvalidRound = errors.New("invalid round")
)
