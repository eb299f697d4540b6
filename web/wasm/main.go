//go:build js && wasm

package main

import (
	"syscall/js"

	"github.com/jaywtf82/cno-voidline-sub002/mastering"
)

var (
	engine *mastering.Engine
	sink   *mastering.LatestSink
	funcs  []js.Func

	inBuf  [][]float64
	outBuf [][]float64
)

func main() {
	api := js.Global().Get("Object").New()
	api.Set("init", export(func(args []js.Value) any {
		sr := 48000.0
		if len(args) > 0 {
			sr = args[0].Float()
		}
		blockSize := 128
		if len(args) > 1 {
			blockSize = args[1].Int()
		}
		sink = mastering.NewLatestSink()
		e, err := mastering.New(sr, sink, mastering.WithBlockSize(blockSize))
		if err != nil {
			return err.Error()
		}
		engine = e
		inBuf = [][]float64{make([]float64, blockSize), make([]float64, blockSize)}
		outBuf = [][]float64{make([]float64, blockSize), make([]float64, blockSize)}
		return js.Null()
	}))

	api.Set("process", export(func(args []js.Value) any {
		if engine == nil || len(args) < 2 {
			return js.Null()
		}
		left, right := args[0], args[1]
		n := engine.BlockSize()
		if left.Length() != n || right.Length() != n {
			return "block length mismatch"
		}
		for i := range n {
			inBuf[0][i] = left.Index(i).Float()
			inBuf[1][i] = right.Index(i).Float()
		}
		if err := engine.ProcessBlock(inBuf, outBuf); err != nil {
			return err.Error()
		}
		for i := range n {
			left.SetIndex(i, outBuf[0][i])
			right.SetIndex(i, outBuf[1][i])
		}
		return js.Null()
	}))

	api.Set("updateLimiter", export(func(args []js.Value) any {
		if engine == nil || len(args) < 3 {
			return js.Null()
		}
		err := engine.UpdateLimiter(args[0].Float(), args[1].Float(), args[2].Float())
		if err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("setLookahead", export(func(args []js.Value) any {
		if engine == nil || len(args) < 1 {
			return js.Null()
		}
		if err := engine.SetLookahead(args[0].Float()); err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("setFftSize", export(func(args []js.Value) any {
		if engine == nil || len(args) < 1 {
			return js.Null()
		}
		if err := engine.SetFFTSize(args[0].Int()); err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("loudness", export(func(_ []js.Value) any {
		m, ok := latest(mastering.KindLoudness)
		if !ok {
			return js.Null()
		}
		lm := m.(mastering.LoudnessMessage)
		obj := js.Global().Get("Object").New()
		obj.Set("momentary", lm.Momentary)
		obj.Set("shortTerm", lm.ShortTerm)
		obj.Set("integrated", lm.Integrated)
		obj.Set("lra", lm.Range)
		obj.Set("truePeakDb", lm.TruePeakDB)
		return obj
	}))

	api.Set("limiter", export(func(_ []js.Value) any {
		m, ok := latest(mastering.KindLimiter)
		if !ok {
			return js.Null()
		}
		lm := m.(mastering.LimiterMessage)
		obj := js.Global().Get("Object").New()
		obj.Set("gainReductionDb", lm.GainReductionDB)
		obj.Set("truePeakDb", lm.TruePeakDB)
		return obj
	}))

	api.Set("levels", export(func(_ []js.Value) any {
		m, ok := latest(mastering.KindLevels)
		if !ok {
			return js.Null()
		}
		lm := m.(mastering.LevelsMessage)
		obj := js.Global().Get("Object").New()
		obj.Set("peakL", lm.PeakL)
		obj.Set("peakR", lm.PeakR)
		obj.Set("rmsL", lm.RMSL)
		obj.Set("rmsR", lm.RMSR)
		obj.Set("correlation", lm.Correlation)
		return obj
	}))

	api.Set("spectrum", export(func(_ []js.Value) any {
		m, ok := latest(mastering.KindSpectrum)
		if !ok {
			return js.Global().Get("Float32Array").New(0)
		}
		sm := m.(mastering.SpectrumMessage)
		arr := js.Global().Get("Float32Array").New(len(sm.MagnitudesDB))
		for i, v := range sm.MagnitudesDB {
			arr.SetIndex(i, v)
		}
		return arr
	}))

	api.Set("reset", export(func(_ []js.Value) any {
		if engine != nil {
			engine.Reset()
		}
		return js.Null()
	}))

	js.Global().Set("MasteringCore", api)
	select {}
}

func latest(k mastering.Kind) (mastering.Message, bool) {
	if sink == nil {
		return nil, false
	}
	return sink.Latest(k)
}

func export(fn func([]js.Value) any) js.Func {
	f := js.FuncOf(func(_ js.Value, args []js.Value) any {
		return fn(args)
	})
	funcs = append(funcs, f)
	return f
}
