package main

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/auxrl/auxdqn/environment"
)

// Demo environment: a fixed 15×15 pixel maze. Observations are three
// 15×15 pixel planes (walls, goal, agent) flattened channel-major, with
// lit pixels at 255 like a rendered image. The agent starts in the top
// left corner and earns a reward of exactly 1 for reaching the goal in
// the bottom right; every other step has reward 0.
const (
	mazeSize     = 15
	mazeChannels = 3
	pixelOn      = 255.0
)

// Action encoding
const (
	down = iota
	right
	up
	left
	numMazeActions
)

type gridMaze struct {
	walls    [mazeSize][mazeSize]bool
	subgoals [][2]int

	goalRow, goalCol int
	row, col         int

	actions *environment.ActionSpace
}

// newGridMaze returns the demo maze. The first numSubgoals waypoint
// cells emit a virtual reward of 1 when stepped on, feeding the virtual
// value function objectives.
func newGridMaze(seed uint64, numSubgoals int) *gridMaze {
	m := &gridMaze{
		goalRow: mazeSize - 2,
		goalCol: mazeSize - 2,
		actions: environment.NewActionSpace(numMazeActions, seed),
	}

	for i := 0; i < mazeSize; i++ {
		m.walls[0][i] = true
		m.walls[mazeSize-1][i] = true
		m.walls[i][0] = true
		m.walls[i][mazeSize-1] = true
	}
	// Two interior walls with one gap each, forcing a serpentine path
	for row := 1; row < mazeSize-1; row++ {
		if row != 11 {
			m.walls[row][5] = true
		}
		if row != 3 {
			m.walls[row][10] = true
		}
	}

	waypoints := [][2]int{{11, 5}, {3, 10}, {13, 7}, {1, 8}, {7, 12}}
	if numSubgoals > len(waypoints) {
		numSubgoals = len(waypoints)
	}
	m.subgoals = waypoints[:numSubgoals]

	return m
}

// Reset starts a new episode with the agent back in the top left corner
func (m *gridMaze) Reset() (*mat.VecDense, map[string]float64, error) {
	m.row, m.col = 1, 1
	return m.observation(), map[string]float64{
		environment.VirtualReward: 0,
	}, nil
}

// Step moves the agent one cell in the argument direction; moves into a
// wall leave the agent in place
func (m *gridMaze) Step(action int) (*mat.VecDense, float64, bool, bool,
	map[string]float64, error) {
	if !m.actions.Contains(action) {
		return nil, 0, false, false, nil, fmt.Errorf("step: invalid "+
			"action %v", action)
	}

	row, col := m.row, m.col
	switch action {
	case down:
		row++
	case right:
		col++
	case up:
		row--
	case left:
		col--
	}
	if !m.walls[row][col] {
		m.row, m.col = row, col
	}

	terminated := m.row == m.goalRow && m.col == m.goalCol
	reward := 0.0
	if terminated {
		reward = 1.0
	}

	virtual := 0.0
	for _, subgoal := range m.subgoals {
		if m.row == subgoal[0] && m.col == subgoal[1] {
			virtual = 1.0
		}
	}

	return m.observation(), reward, terminated, false,
		map[string]float64{environment.VirtualReward: virtual}, nil
}

// ActionSpace returns the maze's four movement directions
func (m *gridMaze) ActionSpace() *environment.ActionSpace {
	return m.actions
}

// ObservationSpec describes the maze's pixel observations
func (m *gridMaze) ObservationSpec() environment.Spec {
	return environment.Spec{
		Shape:       []int{mazeChannels, mazeSize, mazeSize},
		LowerBound:  0,
		UpperBound:  pixelOn,
		Cardinality: environment.Discrete,
	}
}

// observation renders the maze to a flattened pixel vector
func (m *gridMaze) observation() *mat.VecDense {
	data := make([]float64, mazeChannels*mazeSize*mazeSize)
	plane := mazeSize * mazeSize

	for row := 0; row < mazeSize; row++ {
		for col := 0; col < mazeSize; col++ {
			if m.walls[row][col] {
				data[row*mazeSize+col] = pixelOn
			}
		}
	}
	data[plane+m.goalRow*mazeSize+m.goalCol] = pixelOn
	data[2*plane+m.row*mazeSize+m.col] = pixelOn

	return mat.NewVecDense(len(data), data)
}
