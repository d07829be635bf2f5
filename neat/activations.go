package neat

import (
	"fmt"
	"math"
)

// FunctionType selects the activation function a neuron applies to its summed input.
type FunctionType int

const (
	Sigmoid FunctionType = iota
	Tanh
	Linear
	Gaussian
)

// sigmoidSlope is the steepness of the classic NEAT sigmoid.
const sigmoidSlope = 4.924273

// ActivationFunc maps a node's summed weighted input to its output.
type ActivationFunc func(x float64) float64

// ActivationFunctions maps each FunctionType to its implementation.
var ActivationFunctions = map[FunctionType]ActivationFunc{
	Sigmoid:  steepSigmoid,
	Tanh:     math.Tanh,
	Linear:   identity,
	Gaussian: gaussian,
}

// GetActivation retrieves the activation function for a function type.
func GetActivation(ft FunctionType) (ActivationFunc, error) {
	if fn, ok := ActivationFunctions[ft]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("unknown activation function: %d", int(ft))
}

func (ft FunctionType) String() string {
	switch ft {
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case Linear:
		return "linear"
	case Gaussian:
		return "gaussian"
	}
	return fmt.Sprintf("FunctionType(%d)", int(ft))
}

// steepSigmoid is 1 / (1 + exp(-slope*x)), output in (0, 1).
func steepSigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sigmoidSlope*x))
}

func identity(x float64) float64 {
	return x
}

func gaussian(x float64) float64 {
	return math.Exp(-x * x / 2.0)
}
