package spl

import "math"

// Shape constants of the lag model, as fractions of the maximum thrust.
const (
	delayPercentage = 0.1
	plateauLevel    = 0.999
	proRampStart    = 0.3
	proRampEnd      = plateauLevel
	regRampStart    = plateauLevel
	regRampEnd      = 0.3
)

// lagModel stores the constants of the hyperbolic tangent rise and decay
// and of the linear ramps joining them. All times are from ignition.
type lagModel struct {
	dead, lag, burn    float64
	incline            float64 // steepness of the tanh
	displacer          float64 // normalized tanh shift
	timeToRise         float64 // time to reach the plateau level
	proIntersection    float64 // end of the progressive rise
	regIntersection    float64 // end of the regressive ramp
	slopePro, interPro float64
	slopeReg, interReg float64
	neutralRiseEnd     float64
	neutralExtent      float64
	progressiveRampEnd float64
	shapedExtent       float64
}

func atanh2(p float64) float64 {
	return math.Atanh(2*p - 1)
}

// newLagModel computes the model constants. dead must be positive.
func newLagModel(dead, lag, burn float64) lagModel {
	m := lagModel{dead: dead, lag: lag, burn: burn}
	dx := lag / dead
	dy := atanh2(plateauLevel) - atanh2(delayPercentage)
	m.incline = dy / dx
	m.displacer = 1 - atanh2(delayPercentage)/m.incline
	m.timeToRise = (m.displacer + atanh2(plateauLevel)/m.incline) * dead

	m.proIntersection = (atanh2(proRampStart)/m.incline + m.displacer) * dead
	m.regIntersection = burn + 2*dead - (atanh2(regRampEnd)/m.incline+m.displacer)*dead
	m.slopeReg = (regRampEnd - regRampStart) / (m.regIntersection - dead - lag)
	m.slopePro = (proRampEnd - proRampStart) / (dead + burn - lag - m.proIntersection)
	m.interPro = proRampStart - m.slopePro*m.proIntersection
	m.interReg = regRampStart - m.slopeReg*(dead+lag)

	m.neutralRiseEnd = dead + burn/2
	m.neutralExtent = lag + dead + burn
	m.progressiveRampEnd = dead + burn - lag
	m.shapedExtent = dead + burn + lag
	return m
}

func (m lagModel) rising(t float64) float64 {
	return (1 + math.Tanh((t/m.dead-m.displacer)*m.incline)) * 0.5
}

func (m lagModel) decaying(t float64) float64 {
	return (1 + math.Tanh((-m.displacer-(t-m.burn-2*m.dead)/m.dead)*m.incline)) * 0.5
}

func (m lagModel) progressiveRamp(t float64) float64 {
	return m.slopePro*t + m.interPro
}

func (m lagModel) regressiveRamp(t float64) float64 {
	return m.slopeReg*t + m.interReg
}

// level returns the normalized thrust at t for the shape, and false past the burn extent.
// A time landing on a phase boundary belongs to the later phase.
func (m lagModel) level(shape BurnShape, t float64) (float64, bool) {
	switch shape {
	case Progressive:
		switch {
		case t > m.shapedExtent:
			return 0, false
		case t >= m.progressiveRampEnd:
			return m.decaying(t), true
		case t >= m.proIntersection:
			return m.progressiveRamp(t), true
		}
		return m.rising(t), true
	case Regressive:
		switch {
		case t > m.shapedExtent:
			return 0, false
		case t >= m.regIntersection:
			return m.decaying(t), true
		case t >= m.dead+m.lag:
			return m.regressiveRamp(t), true
		}
		return m.rising(t), true
	default:
		switch {
		case t > m.neutralExtent:
			return 0, false
		case t >= m.neutralRiseEnd:
			return m.decaying(t), true
		}
		return m.rising(t), true
	}
}

// extent returns the total burn extent of the shape.
func (m lagModel) extent(shape BurnShape) float64 {
	if shape == Neutral {
		return m.neutralExtent
	}
	return m.shapedExtent
}
