package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/auxrl/auxdqn/agent"
	"github.com/auxrl/auxdqn/config"
	"github.com/auxrl/auxdqn/experiment"
	"github.com/auxrl/auxdqn/experiment/checkpointer"
	"github.com/auxrl/auxdqn/experiment/savers"
	"github.com/auxrl/auxdqn/network"
)

func main() {
	configFile := "config.yaml"
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	conf, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("could not load configuration: %v", err)
	}

	// The virtual value function variants need the environment to emit
	// its virtual reward channel
	subgoals := 0
	switch network.AuxTask(conf.UseAux) {
	case network.AuxVirtualReward1:
		subgoals = 1
	case network.AuxVirtualReward5:
		subgoals = 5
	}
	maze := newGridMaze(conf.Seed, subgoals)

	auxAgent, err := agent.New(conf.AgentConfig(), maze)
	if err != nil {
		log.Fatalf("could not create agent: %v", err)
	}
	if conf.LoadModel != "" {
		if err := auxAgent.LoadWeights(conf.LoadModel); err != nil {
			log.Fatalf("could not load model: %v", err)
		}
	}

	run := experiment.RunID()
	online := experiment.NewOnline(maze, auxAgent, conf.MaxEpisodes,
		conf.Horizon, conf.ConsecutiveEpisodes, conf.SaveRatio, true)

	if conf.SaveRewards || conf.PlotDuringTraining {
		if err := os.MkdirAll(conf.RewardDir, 0755); err != nil {
			log.Fatalf("could not create reward directory: %v", err)
		}
	}
	if conf.SaveRewards {
		online.Register(savers.NewReturn(
			filepath.Join(conf.RewardDir, "rewards_"+run+".bin")))
	}
	if conf.PlotDuringTraining {
		online.Register(savers.NewRewardPlot(
			filepath.Join(conf.RewardDir, "rewards_"+run+".png")))
	}
	if conf.SaveModel && conf.SaveRatio > 0 {
		if err := os.MkdirAll(conf.ModelDir, 0755); err != nil {
			log.Fatalf("could not create model directory: %v", err)
		}
		online.Checkpoint(checkpointer.NewEpisodic(
			conf.SaveRatio,
			auxAgent.TargetNetwork(),
			checkpointer.Fixed(filepath.Join(conf.ModelDir, run+".bin")),
		))
	}

	if err := online.Run(); err != nil {
		log.Fatalf("training failed: %v", err)
	}

	fmt.Printf("run %v finished after %v episodes (streak %v, ε=%.3f)\n",
		run, online.Episodes(), online.Streak(), auxAgent.Epsilon())
}
