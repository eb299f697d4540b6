package window

import (
	"errors"
	"fmt"
)

var errMismatchedLength = errors.New("samples and coefficients must have same length")

func validateLength(size int) error {
	if size <= 0 {
		return fmt.Errorf("window size must be > 0: %d", size)
	}

	return nil
}

// Kaiser returns Kaiser window coefficients with the given beta.
func Kaiser(size int, beta float64, opts ...Option) ([]float64, error) {
	if err := validateLength(size); err != nil {
		return nil, err
	}

	if beta < 0 {
		return nil, fmt.Errorf("kaiser beta must be >= 0: %f", beta)
	}

	return Generate(TypeKaiser, size, append(opts, WithAlpha(beta))...), nil
}

// Tukey returns Tukey window coefficients with the given taper fraction.
func Tukey(size int, alpha float64, opts ...Option) ([]float64, error) {
	if err := validateLength(size); err != nil {
		return nil, err
	}

	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("tukey alpha must be in [0,1]: %f", alpha)
	}

	return Generate(TypeTukey, size, append(opts, WithAlpha(alpha))...), nil
}
