// Package grove embeds a Lua scripting VM in a 2D game engine built on
// [Ebitengine].
//
// Scripts declare programs; the runtime spawns them as objects in a single
// tree rooted at the System object and ticks the current state of every
// live object once per frame. Go code refers to objects through [Handle]
// values, which stop resolving once the object is destroyed or the VM is
// reset.
//
// # Quick start
//
//	cfg, err := grove.LoadConfig("game.toml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	cfg.Logger, _ = grove.NewLogger(cfg.LogLevel, true)
//	cfg.Input = grove.NewKeyboardSource()
//
//	rt := grove.NewRuntime(cfg)
//	if err := rt.Initialize(os.Args); err != nil {
//		rt.Fail(err)
//	}
//	if err := grove.Run(rt); err != nil {
//		rt.Fail(err)
//	}
//
// # Scripts
//
// Every file with the script extension under the scripts directory is
// compiled at startup and on every reload. A file declares one or more
// programs:
//
//	object "Player" {
//		tags = { "hero" },
//		speed = 60,
//
//		init = function(self)
//			self:set_position(40, 120)
//		end,
//
//		states = {
//			main = function(self, dt)
//				if Engine.Input:held("right") then
//					self:move(self.speed * dt, 0)
//				end
//			end,
//		},
//
//		get_zindex = function(self) return 0.7 end,
//	}
//
// Files from the data directory are primary; files from the user directory
// are overrides and replace primary programs of the same name. A script
// that defines its own Application with a main state puts the runtime in
// test mode: the built-in Application, which spawns Config.Startup, is not
// registered.
//
// # Transforms
//
// Each object has a local position and angle relative to its parent.
// [VM.WorldPosition] and [VM.SetWorldPosition] convert through the whole
// ancestor chain. Angles are in degrees.
//
// # Engine namespaces
//
// The Engine plugin is spawned under the root before the Application and
// exposed to scripts as the global Engine. Its components (Camera, Input,
// Time, Screen, Lang, Console) are fields of that table. Host code adds
// its own through Config.Namespaces.
//
// [Ebitengine]: https://ebitengine.org
package grove
