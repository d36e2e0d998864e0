package ops

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/slipstream/graph"
	"github.com/vk/slipstream/internal/ctxlog"
	"github.com/vk/slipstream/internal/pipeline"
)

// registerBuiltins installs the standard op set. Every op body goes through
// the task context only, so it traces, captures, and executes identically.
func registerBuiltins(r *Registry) {
	r.Register("fill", opFill)
	r.Register("iota", opIota)
	r.Register("copy", opCopy)
	r.Register("axpy", opAxpy)
	r.Register("scale", opScale)
	r.Register("sum", opSum)
	r.Register("print", opPrint)
}

// opFill overwrites a buffer with a constant: fill { target = "x", value = 1 }.
func opFill(ctx context.Context, env *Env, n *pipeline.Node) error {
	target, err := bufferArg(env, n, "target")
	if err != nil {
		return err
	}
	value, err := floatArg(n, "value")
	if err != nil {
		return err
	}
	return env.Graph.AddNode(ctx, n.Name, func(tc *graph.TaskContext) error {
		out := target.Eval(tc)
		return tc.ParallelFor("fill", out.Len(), func(i int) {
			out.Set(i, value)
		})
	})
}

// opIota writes an arithmetic sequence: iota { target = "x", start = 0, step = 1 }.
func opIota(ctx context.Context, env *Env, n *pipeline.Node) error {
	target, err := bufferArg(env, n, "target")
	if err != nil {
		return err
	}
	start, err := optFloatArg(n, "start", 0)
	if err != nil {
		return err
	}
	step, err := optFloatArg(n, "step", 1)
	if err != nil {
		return err
	}
	return env.Graph.AddNode(ctx, n.Name, func(tc *graph.TaskContext) error {
		out := target.Eval(tc)
		return tc.ParallelFor("iota", out.Len(), func(i int) {
			out.Set(i, start+step*float64(i))
		})
	})
}

// opCopy copies the overlapping prefix: copy { from = "x", to = "y" }.
func opCopy(ctx context.Context, env *Env, n *pipeline.Node) error {
	from, err := bufferArg(env, n, "from")
	if err != nil {
		return err
	}
	to, err := bufferArg(env, n, "to")
	if err != nil {
		return err
	}
	return env.Graph.AddNode(ctx, n.Name, func(tc *graph.TaskContext) error {
		src := from.ConstEval(tc)
		dst := to.Eval(tc)
		return tc.ParallelFor("copy", min(src.Len(), dst.Len()), func(i int) {
			dst.Set(i, src.Get(i))
		})
	})
}

// opAxpy computes y = a*x + y over the overlap: axpy { a = 2, x = "x", y = "y" }.
func opAxpy(ctx context.Context, env *Env, n *pipeline.Node) error {
	a, err := floatArg(n, "a")
	if err != nil {
		return err
	}
	xv, err := bufferArg(env, n, "x")
	if err != nil {
		return err
	}
	yv, err := bufferArg(env, n, "y")
	if err != nil {
		return err
	}
	return env.Graph.AddNode(ctx, n.Name, func(tc *graph.TaskContext) error {
		x := xv.ConstEval(tc)
		y := yv.Eval(tc)
		return tc.ParallelFor("axpy", min(x.Len(), y.Len()), func(i int) {
			y.Set(i, a*x.Get(i)+y.Get(i))
		})
	})
}

// opScale multiplies a buffer by a device scalar: scale { target = "x", factor = "alpha" }.
func opScale(ctx context.Context, env *Env, n *pipeline.Node) error {
	target, err := bufferArg(env, n, "target")
	if err != nil {
		return err
	}
	factor, err := scalarArg(env, n, "factor")
	if err != nil {
		return err
	}
	return env.Graph.AddNode(ctx, n.Name, func(tc *graph.TaskContext) error {
		f := factor.ConstEval(tc)
		out := target.Eval(tc)
		return tc.ParallelFor("scale", out.Len(), func(i int) {
			out.Set(i, out.Get(i)*f.Get())
		})
	})
}

// opSum reduces a buffer into a device scalar: sum { from = "x", into = "total" }.
func opSum(ctx context.Context, env *Env, n *pipeline.Node) error {
	from, err := bufferArg(env, n, "from")
	if err != nil {
		return err
	}
	into, err := scalarArg(env, n, "into")
	if err != nil {
		return err
	}
	return env.Graph.AddNode(ctx, n.Name, func(tc *graph.TaskContext) error {
		src := from.ConstEval(tc)
		dst := into.Eval(tc)
		return tc.Run("sum", func() error {
			total := 0.0
			for i := 0; i < src.Len(); i++ {
				total += src.Get(i)
			}
			dst.Set(total)
			return nil
		})
	})
}

// opPrint logs a buffer's contents at execution time: print { from = "y" }.
// A consume-only node: it reads its input and writes nothing.
func opPrint(ctx context.Context, env *Env, n *pipeline.Node) error {
	from, err := bufferArg(env, n, "from")
	if err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx)
	name := n.Name
	return env.Graph.AddNode(ctx, n.Name, func(tc *graph.TaskContext) error {
		src := from.ConstEval(tc)
		return tc.Run("print", func() error {
			vals := make([]float64, src.Len())
			for i := range vals {
				vals[i] = src.Get(i)
			}
			logger.Info("Buffer contents.", "node", name, "buffer", from.Name(), "values", vals)
			return nil
		})
	})
}

func bufferArg(env *Env, n *pipeline.Node, key string) (*graph.BufferVar[float64], error) {
	name, err := stringArg(n, key)
	if err != nil {
		return nil, err
	}
	v, ok := env.Buffers[name]
	if !ok {
		return nil, fmt.Errorf("argument %q: no buffer named %q", key, name)
	}
	return v, nil
}

func scalarArg(env *Env, n *pipeline.Node, key string) (*graph.ScalarVar[float64], error) {
	name, err := stringArg(n, key)
	if err != nil {
		return nil, err
	}
	v, ok := env.Scalars[name]
	if !ok {
		return nil, fmt.Errorf("argument %q: no scalar named %q", key, name)
	}
	return v, nil
}

func stringArg(n *pipeline.Node, key string) (string, error) {
	val, ok := n.Args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	var s string
	if err := gocty.FromCtyValue(val, &s); err != nil {
		return "", fmt.Errorf("argument %q: %w", key, err)
	}
	return s, nil
}

func floatArg(n *pipeline.Node, key string) (float64, error) {
	val, ok := n.Args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	var f float64
	if err := gocty.FromCtyValue(val, &f); err != nil {
		return 0, fmt.Errorf("argument %q: %w", key, err)
	}
	return f, nil
}

func optFloatArg(n *pipeline.Node, key string, def float64) (float64, error) {
	if _, ok := n.Args[key]; !ok {
		return def, nil
	}
	return floatArg(n, key)
}
