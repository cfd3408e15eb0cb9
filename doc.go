/*
Package flume builds and executes audio processing pipelines.

# Concept

A pipeline is a graph of named elements connected by buses. Elements come
in three flavors:

	Source - the origin of signal;
	Transform - the manipulator of the signal;
	Sink - the destination of signal;

Elements never block. A single Step either makes progress, reports that its
input is starved or its output is blocked, or declares the stream complete.
Suspension is expressed through the returned Outcome, which lets one
scheduler drive any number of elements cooperatively on a single goroutine,
or the concurrent driver run every element on its own goroutine with the
same element code.

# Buses

Elements exchange ownership of chunks through buses. The databus package
provides three implementations: a single-value slot where the producer
overwrites stale data, a fixed-capacity FIFO ring safe for one producer and
one consumer, and a block pool that recycles pre-allocated chunks so the
steady state allocates nothing.

# Drivers

The cooperative driver steps elements in topological order:

	p.Configure()
	p.Start()
	p.Run(ctx)

The concurrent driver runs each element on its own goroutine and merges
their errors, inspired by the pipeline pattern explained in the go blog
https://blog.golang.org/pipelines:

	a, _ := p.Async(ctx)
	err := a.Await()

Both drivers flush every element on stop so no in-flight data is lost.
*/
package flume
