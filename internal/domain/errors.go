package domain

import "errors"

var (
	// ErrDriverUnavailable is returned when no browser backend could be started
	ErrDriverUnavailable = errors.New("no browser backend available")

	// ErrNavigation is returned when a page could not be loaded
	ErrNavigation = errors.New("navigation failed")

	// ErrElementNotFound is returned when an expected element is absent from the page
	ErrElementNotFound = errors.New("element not found")

	// ErrMalformedValue is returned when a nutrient amount is not numeric
	ErrMalformedValue = errors.New("malformed nutrient value")

	// ErrSchemaWrite is returned when a column could not be added or backfilled
	ErrSchemaWrite = errors.New("schema write failed")

	// ErrIntegrityMismatch is returned when a write did not change the row count as expected
	ErrIntegrityMismatch = errors.New("row count mismatch after write")

	// ErrGaveUp is returned when a query exhausted its retries
	ErrGaveUp = errors.New("gave up after retries")

	// ErrFoodNotFound is returned when a food has no row in a category table
	ErrFoodNotFound = errors.New("food not found")

	// ErrUnknownCategory is returned for a table name that is not configured
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrFDCAPIFailure is returned when a FoodData Central API request fails
	ErrFDCAPIFailure = errors.New("FDC API request failed")
)
