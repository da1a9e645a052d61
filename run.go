package grove

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// game adapts a Runtime to ebiten.Game.
type game struct {
	rt *Runtime
	dt float64
}

func (g *game) Update() error {
	if g.rt.QuitRequested() {
		return ebiten.Termination
	}
	if err := g.rt.Update(g.dt); err != nil {
		g.rt.Fail(err)
		return err
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if !g.rt.cfg.ShowFPS {
		return
	}
	ticked, elapsed := g.rt.vm.LastTickStats()
	ebitenutil.DebugPrint(screen, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nobjects: %d (%d ticked)\ntick: %s",
		ebiten.ActualFPS(), ebiten.ActualTPS(), g.rt.vm.ObjectCount(), ticked, elapsed))
}

func (g *game) Layout(_, _ int) (int, int) {
	return g.rt.cfg.Width, g.rt.cfg.Height
}

// Run opens a window and drives an initialized runtime at the configured
// tick rate until a script quits or the window closes. The runtime is shut
// down before Run returns.
//
//	rt := grove.NewRuntime(cfg)
//	if err := rt.Initialize(os.Args); err != nil {
//		rt.Fail(err)
//	}
//	if err := grove.Run(rt); err != nil {
//		rt.Fail(err)
//	}
func Run(rt *Runtime) error {
	defer rt.Shutdown()
	if rt.state != stateRunning {
		return ErrNotLaunched
	}
	ebiten.SetWindowTitle(rt.cfg.Title)
	ebiten.SetWindowSize(rt.cfg.Width*2, rt.cfg.Height*2)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(rt.cfg.TPS)
	err := ebiten.RunGame(&game{rt: rt, dt: 1 / float64(rt.cfg.TPS)})
	if err == ebiten.Termination {
		return nil
	}
	return err
}
