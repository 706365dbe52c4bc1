// Package dsp implements offline loudness normalization: BS.1770
// K-weighted gated loudness measurement, oversampled true-peak metering
// and a look-ahead true-peak limiter, plus the buffer resampler feeding
// them.
package dsp

import "errors"

var (
	// ErrEmptyBuffer is returned when a buffer holds no frames.
	ErrEmptyBuffer = errors.New("dsp: empty buffer")
	// ErrUnsupportedFormat is returned, before any resampling, when a
	// buffer's channel slices do not all hold the same number of frames.
	ErrUnsupportedFormat = errors.New("dsp: unsupported buffer format")
	// ErrConverterInit is returned when the resampler cannot be set up
	// for the requested rate pair.
	ErrConverterInit = errors.New("dsp: converter init failed")
	// ErrConversion is returned when resampling fails mid-stream.
	ErrConversion = errors.New("dsp: conversion failed")
)
